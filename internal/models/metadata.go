package models

// FieldType 定义模板字段类型
type FieldType string

const (
    FieldTypeString FieldType = "string"
    FieldTypeFloat  FieldType = "float"
    FieldTypeDate   FieldType = "date"
    FieldTypeEnum   FieldType = "enum"
)

// FieldDefinition 定义模板中的单个字段
type FieldDefinition struct {
    Key         string    `json:"key" yaml:"key"`
    DisplayName string    `json:"displayName,omitempty" yaml:"displayName,omitempty"`
    Description string    `json:"description,omitempty" yaml:"description,omitempty"`
    Type        FieldType `json:"type" yaml:"type"`
    // Options holds the allowed literals for enum fields.
    Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// MetadataTemplate 定义远端存储的元数据模板
type MetadataTemplate struct {
    Scope       string            `json:"scope" yaml:"scope"`
    TemplateKey string            `json:"templateKey" yaml:"templateKey"`
    Fields      []FieldDefinition `json:"fields" yaml:"fields"`
    // CriticalKeys are the fields applied first during phased retry.
    CriticalKeys []string `json:"criticalKeys,omitempty" yaml:"criticalKeys,omitempty"`
}

// Field returns the definition for key, if declared by the template.
func (t *MetadataTemplate) Field(key string) (FieldDefinition, bool) {
    for _, f := range t.Fields {
        if f.Key == key {
            return f, true
        }
    }
    return FieldDefinition{}, false
}

// FieldTypes returns a key -> type lookup for the template.
func (t *MetadataTemplate) FieldTypes() map[string]FieldType {
    types := make(map[string]FieldType, len(t.Fields))
    for _, f := range t.Fields {
        types[f.Key] = f.Type
    }
    return types
}

// FieldMap 规范化后的字段映射（键 -> 原始值）
type FieldMap map[string]interface{}

// ClassificationSource 标识分类结果的来源
type ClassificationSource string

const (
    SourceAI        ClassificationSource = "ai"
    SourceHeuristic ClassificationSource = "heuristic"
)

// DocumentClassification 文档类型分类结果
type DocumentClassification struct {
    DocumentType string               `json:"documentType"`
    Confidence   float64              `json:"confidence"`
    Source       ClassificationSource `json:"source"`
}

// FileRef 指向远端存储中的一个文件
type FileRef struct {
    ID   string `json:"id"`
    Name string `json:"name"`
}

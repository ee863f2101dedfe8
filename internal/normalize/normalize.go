package normalize

import (
    "encoding/json"
    "strings"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

// ExtractedTextKey 无法解析的 answer 文本保存在该字段下
const ExtractedTextKey = "extracted_text"

// reservedPrefix 带该前缀的键属于响应信封，不是提取数据
const reservedPrefix = "$"

// envelopeKeys 平铺响应中需要剥离的信封键
var envelopeKeys = map[string]struct{}{
    "ai_agent_info":     {},
    "completion_reason": {},
    "created_at":        {},
    "type":              {},
    "id":                {},
    "scope":             {},
    "template":          {},
}

// Result 规范化结果
type Result struct {
    Fields models.FieldMap
    // TemplateEcho 为 true 表示提供方返回了模板定义而非提取数据
    TemplateEcho bool
}

// Empty reports whether normalization recovered no usable fields.
func (r Result) Empty() bool {
    return len(r.Fields) == 0
}

// payload 是三种响应形态的标签联合；每种形态各自负责展开成字段映射
type payload interface {
    fieldMap() models.FieldMap
}

type fieldEntry struct {
    Key    string          `json:"key"`
    Value  json.RawMessage `json:"value"`
    Prompt string          `json:"prompt"`
    Type   string          `json:"type"`
}

// fieldsPayload：顶层 fields 数组形态
type fieldsPayload struct {
    entries []fieldEntry
}

func (p fieldsPayload) fieldMap() models.FieldMap {
    out := make(models.FieldMap, len(p.entries))
    for _, e := range p.entries {
        if e.Key == "" || e.Value == nil {
            continue
        }
        var v interface{}
        if err := json.Unmarshal(e.Value, &v); err != nil {
            continue
        }
        // 后出现的同名键覆盖先出现的
        out[e.Key] = v
    }
    return out
}

// definitionOnly reports whether the entries describe a template (prompt and
// type but no values) rather than extracted data.
func (p fieldsPayload) definitionOnly() bool {
    if len(p.entries) == 0 {
        return false
    }
    for _, e := range p.entries {
        if e.Value != nil {
            return false
        }
        if e.Prompt == "" && e.Type == "" {
            return false
        }
    }
    return true
}

// answerPayload：answer 字段形态（对象或字符串）
type answerPayload struct {
    obj  map[string]interface{}
    text string
}

func (p answerPayload) fieldMap() models.FieldMap {
    if p.obj != nil {
        return stripEnvelope(p.obj)
    }
    trimmed := strings.TrimSpace(p.text)
    if trimmed == "" {
        return models.FieldMap{}
    }
    var parsed map[string]interface{}
    if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
        return stripEnvelope(parsed)
    }
    // 非 JSON 文本整体保留，便于下游人工处理
    return models.FieldMap{ExtractedTextKey: trimmed}
}

// flatPayload：整个响应体即字段映射
type flatPayload struct {
    m map[string]interface{}
}

func (p flatPayload) fieldMap() models.FieldMap {
    return stripEnvelope(p.m)
}

// rawEnvelope 用于判别响应形态
type rawEnvelope struct {
    Fields []fieldEntry    `json:"fields"`
    Answer json.RawMessage `json:"answer"`
}

// Normalize converts a raw provider payload into a canonical field map.
// It never fails: unrecognized or empty payloads yield an empty result.
func Normalize(raw []byte) Result {
    if len(raw) == 0 {
        return Result{Fields: models.FieldMap{}}
    }

    var flat map[string]interface{}
    if err := json.Unmarshal(raw, &flat); err != nil {
        return Result{Fields: models.FieldMap{}}
    }

    var env rawEnvelope
    _ = json.Unmarshal(raw, &env)

    p := resolveShape(flat, env)

    if fp, ok := p.(fieldsPayload); ok && fp.definitionOnly() {
        return Result{Fields: models.FieldMap{}, TemplateEcho: true}
    }
    return Result{Fields: p.fieldMap()}
}

// resolveShape 按优先级判别三种形态
func resolveShape(flat map[string]interface{}, env rawEnvelope) payload {
    if _, ok := flat["fields"]; ok && env.Fields != nil {
        return fieldsPayload{entries: env.Fields}
    }

    if rawAnswer, ok := flat["answer"]; ok && env.Answer != nil {
        switch a := rawAnswer.(type) {
        case map[string]interface{}:
            // answer 内嵌 fields 数组时按 fields 形态展开
            if nested, ok := a["fields"]; ok {
                if entries, ok := nestedFieldEntries(nested); ok {
                    return fieldsPayload{entries: entries}
                }
            }
            return answerPayload{obj: a}
        case string:
            return answerPayload{text: a}
        }
    }

    return flatPayload{m: flat}
}

func nestedFieldEntries(v interface{}) ([]fieldEntry, bool) {
    list, ok := v.([]interface{})
    if !ok {
        return nil, false
    }
    data, err := json.Marshal(list)
    if err != nil {
        return nil, false
    }
    var entries []fieldEntry
    if err := json.Unmarshal(data, &entries); err != nil {
        return nil, false
    }
    return entries, true
}

// stripEnvelope 去掉信封键与保留前缀键
func stripEnvelope(m map[string]interface{}) models.FieldMap {
    out := make(models.FieldMap, len(m))
    for k, v := range m {
        if _, reserved := envelopeKeys[k]; reserved {
            continue
        }
        if strings.HasPrefix(k, reservedPrefix) {
            continue
        }
        out[k] = v
    }
    return out
}

package sanitize

import (
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// DateLayout 日期字段的规范形式
const DateLayout = "2006-01-02"

// dateLayouts 接受的日期字面量格式，按常见程度排序
var dateLayouts = []string{
    "2006-01-02",
    "01/02/2006",
    "January 2, 2006",
    "Jan 2, 2006",
    "2006-01-02T15:04:05Z",
}

// Sanitizer 按模板定义清洗字段值
type Sanitizer struct {
    logger logger.Logger
}

func NewSanitizer(log logger.Logger) *Sanitizer {
    return &Sanitizer{logger: log}
}

// Sanitize converts raw into the template's declared types. Keys the template
// does not declare are dropped silently; declared keys whose values cannot be
// converted are dropped and reported. The returned map never contains null or
// empty-string values.
func (s *Sanitizer) Sanitize(tpl *models.MetadataTemplate, raw models.FieldMap) (models.FieldMap, []models.FieldRejection) {
    out := make(models.FieldMap, len(raw))
    var rejected []models.FieldRejection

    for key, value := range raw {
        def, declared := tpl.Field(key)
        if !declared {
            // schema 是唯一可信来源，未声明的键直接丢弃
            continue
        }
        if isEmpty(value) {
            continue
        }

        converted, err := convert(def, value)
        if err != nil {
            rejected = append(rejected, models.FieldRejection{Key: key, Reason: err.Error()})
            s.logger.Warn("Dropping field during sanitization",
                logger.String("template", tpl.TemplateKey),
                logger.String("field", key),
                logger.String("reason", err.Error()),
            )
            continue
        }
        if isEmpty(converted) {
            continue
        }
        out[key] = converted
    }

    return out, rejected
}

func isEmpty(v interface{}) bool {
    if v == nil {
        return true
    }
    if s, ok := v.(string); ok {
        return strings.TrimSpace(s) == ""
    }
    return false
}

// convert 按声明类型转换单个值
func convert(def models.FieldDefinition, value interface{}) (interface{}, error) {
    switch def.Type {
    case models.FieldTypeString:
        return convertString(value)
    case models.FieldTypeFloat:
        return convertFloat(value)
    case models.FieldTypeDate:
        return convertDate(value)
    case models.FieldTypeEnum:
        return convertEnum(def, value)
    default:
        return nil, fmt.Errorf("unknown field type %q", def.Type)
    }
}

func convertString(value interface{}) (interface{}, error) {
    switch v := value.(type) {
    case string:
        return strings.TrimSpace(v), nil
    case float64:
        return strconv.FormatFloat(v, 'f', -1, 64), nil
    case bool:
        return strconv.FormatBool(v), nil
    default:
        return nil, fmt.Errorf("value of type %T is not a string", value)
    }
}

func convertFloat(value interface{}) (interface{}, error) {
    switch v := value.(type) {
    case float64:
        return v, nil
    case string:
        // 金额常带货币符号与千位分隔符
        cleaned := strings.TrimSpace(v)
        cleaned = strings.TrimPrefix(cleaned, "$")
        cleaned = strings.ReplaceAll(cleaned, ",", "")
        f, err := strconv.ParseFloat(cleaned, 64)
        if err != nil {
            return nil, fmt.Errorf("not a numeric literal: %q", v)
        }
        return f, nil
    default:
        return nil, fmt.Errorf("value of type %T is not numeric", value)
    }
}

func convertDate(value interface{}) (interface{}, error) {
    s, ok := value.(string)
    if !ok {
        return nil, fmt.Errorf("value of type %T is not a date", value)
    }
    s = strings.TrimSpace(s)
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t.Format(DateLayout), nil
        }
    }
    return nil, fmt.Errorf("unrecognized date format: %q", s)
}

func convertEnum(def models.FieldDefinition, value interface{}) (interface{}, error) {
    s, ok := value.(string)
    if !ok {
        return nil, fmt.Errorf("value of type %T is not an enum literal", value)
    }
    s = strings.TrimSpace(s)
    for _, opt := range def.Options {
        if s == opt {
            return s, nil
        }
    }
    return nil, fmt.Errorf("%q is not one of the declared options", s)
}

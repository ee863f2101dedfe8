package address

import (
    "strings"

    "github.com/agext/levenshtein"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

// matchThreshold 单个组件判定为匹配的最低相似度
const matchThreshold = 0.8

// componentKeys 参与比对的地址组件，与 address_validation 模板字段一致
var componentKeys = []string{"street_address", "city", "state_province", "postal_code"}

// Reference 客户登记的参考地址
type Reference struct {
    StreetAddress string `json:"streetAddress"`
    City          string `json:"city"`
    StateProvince string `json:"stateProvince"`
    PostalCode    string `json:"postalCode"`
}

// Empty reports whether no component is present.
func (r Reference) Empty() bool {
    return r.StreetAddress == "" && r.City == "" && r.StateProvince == "" && r.PostalCode == ""
}

func (r Reference) component(key string) string {
    switch key {
    case "street_address":
        return r.StreetAddress
    case "city":
        return r.City
    case "state_province":
        return r.StateProvince
    case "postal_code":
        return r.PostalCode
    }
    return ""
}

// ReferenceFromString splits a free-form address on commas into components,
// best effort: street, city, state, postal.
func ReferenceFromString(s string) Reference {
    parts := strings.Split(s, ",")
    for i := range parts {
        parts[i] = strings.TrimSpace(parts[i])
    }
    var ref Reference
    if len(parts) > 0 {
        ref.StreetAddress = parts[0]
    }
    if len(parts) > 1 {
        ref.City = parts[1]
    }
    if len(parts) > 2 {
        ref.StateProvince = parts[2]
    }
    if len(parts) > 3 {
        ref.PostalCode = parts[3]
    }
    return ref
}

// ComponentMatch 单个组件的比对结果
type ComponentMatch struct {
    Reference  string  `json:"reference"`
    Extracted  string  `json:"extracted"`
    Similarity float64 `json:"similarity"`
    Match      bool    `json:"match"`
}

// Result 地址比对结果
type Result struct {
    Components     map[string]ComponentMatch `json:"components"`
    Classification models.AddressMatch       `json:"classification"`
}

// Compare scores each address component of the extracted metadata against the
// reference. Components absent on both sides are left out of the score.
func Compare(ref Reference, extracted models.FieldMap) Result {
    if ref.Empty() {
        return Result{Classification: models.AddressNotEvaluated}
    }

    components := make(map[string]ComponentMatch, len(componentKeys))
    matched, total := 0, 0

    for _, key := range componentKeys {
        refVal := NormalizeComponent(ref.component(key))
        extVal := NormalizeComponent(stringField(extracted, key))
        if refVal == "" && extVal == "" {
            continue
        }

        sim := similarity(refVal, extVal)
        m := ComponentMatch{
            Reference:  refVal,
            Extracted:  extVal,
            Similarity: sim,
            Match:      sim >= matchThreshold,
        }
        components[key] = m
        total++
        if m.Match {
            matched++
        }
    }

    if total == 0 {
        return Result{Components: components, Classification: models.AddressNotEvaluated}
    }

    var class models.AddressMatch
    switch {
    case matched == total:
        class = models.AddressExact
    case matched == 0:
        class = models.AddressFullMismatch
    default:
        class = models.AddressPartial
    }
    return Result{Components: components, Classification: class}
}

// ValidationStatus maps a comparison classification onto the enum literals of
// the address_validation template.
func ValidationStatus(class models.AddressMatch) string {
    switch class {
    case models.AddressExact:
        return "Match"
    case models.AddressPartial:
        return "Partial Match"
    case models.AddressFullMismatch:
        return "Mismatch"
    default:
        return "Not Validated"
    }
}

// NormalizeComponent lowercases, strips punctuation and canonicalizes the
// usual unit designators before comparison.
func NormalizeComponent(s string) string {
    n := strings.ToLower(strings.TrimSpace(s))
    n = strings.ReplaceAll(n, ",", "")
    n = strings.ReplaceAll(n, ".", "")
    n = strings.ReplaceAll(n, "#", "apt ")
    n = strings.ReplaceAll(n, "apartment", "apt")
    n = strings.ReplaceAll(n, "unit", "apt")
    n = strings.ReplaceAll(n, "suite", "ste")
    return strings.Join(strings.Fields(n), " ")
}

// JoinComponents joins the non-empty parts with ", ".
func JoinComponents(parts ...string) string {
    present := make([]string, 0, len(parts))
    for _, p := range parts {
        if strings.TrimSpace(p) != "" {
            present = append(present, strings.TrimSpace(p))
        }
    }
    return strings.Join(present, ", ")
}

func similarity(a, b string) float64 {
    if a == "" && b == "" {
        return 1.0
    }
    if a == "" || b == "" {
        return 0.0
    }
    return levenshtein.Similarity(a, b, nil)
}

func stringField(m models.FieldMap, key string) string {
    if v, ok := m[key]; ok {
        if s, ok := v.(string); ok {
            return s
        }
    }
    return ""
}

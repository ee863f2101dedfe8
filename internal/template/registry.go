package template

import (
    "fmt"
    "os"
    "sync"

    "gopkg.in/yaml.v3"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

// 基础模板与地址校验模板的 key
const (
    BaseTemplateKey    = "financialDocumentBase"
    AddressTemplateKey = "address_validation"
)

// documentTypeTemplates 文档类型 -> 类型模板 key 的静态映射
var documentTypeTemplates = map[string]string{
    "1099":                         "irs1099",
    "W-2":                          "irsw2",
    "Account Statement":            "accountStatement",
    "Mortgage Statement":           "mortgageStatement",
    "Trust Document":               "trustDocument",
    "Asset List":                   "assetList",
    "1040":                         "irs1040",
    "Personal Financial Statement": "personalFinancialStatement",
    "Life Insurance Document":      "lifeInsuranceDocument",
    "Other":                        "otherDocument",
}

// TemplateKeyForDocumentType 根据文档类型选择类型模板；未知类型返回 false
func TemplateKeyForDocumentType(documentType string) (string, bool) {
    key, ok := documentTypeTemplates[documentType]
    return key, ok
}

// Registry 提供按 (scope, templateKey) 查询模板的能力。
// 模板一经载入即不可变，按值缓存。
type Registry struct {
    mu        sync.RWMutex
    scope     string
    templates map[string]models.MetadataTemplate
}

// registryFile YAML 配置文件结构
type registryFile struct {
    Scope     string                    `yaml:"scope"`
    Templates []models.MetadataTemplate `yaml:"templates"`
}

// NewRegistry creates a registry seeded with the builtin template catalogue.
func NewRegistry(scope string) *Registry {
    r := &Registry{
        scope:     scope,
        templates: make(map[string]models.MetadataTemplate),
    }
    for _, t := range builtinTemplates() {
        t.Scope = scope
        r.templates[t.TemplateKey] = t
    }
    return r
}

// LoadFile merges template definitions from a YAML file. Definitions in the
// file replace builtin ones with the same key.
func (r *Registry) LoadFile(path string) error {
    data, err := os.ReadFile(path)
    if err != nil {
        return fmt.Errorf("failed to read template file: %w", err)
    }
    var file registryFile
    if err := yaml.Unmarshal(data, &file); err != nil {
        return fmt.Errorf("failed to parse template file: %w", err)
    }

    r.mu.Lock()
    defer r.mu.Unlock()
    if file.Scope != "" {
        r.scope = file.Scope
    }
    for _, t := range file.Templates {
        if t.TemplateKey == "" {
            return fmt.Errorf("template with empty key in %s", path)
        }
        if t.Scope == "" {
            t.Scope = r.scope
        }
        r.templates[t.TemplateKey] = t
    }
    return nil
}

// Scope returns the enterprise scope templates are registered under.
func (r *Registry) Scope() string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.scope
}

// Template returns the template for key. The returned value is a copy.
func (r *Registry) Template(key string) (*models.MetadataTemplate, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    t, ok := r.templates[key]
    if !ok {
        return nil, fmt.Errorf("unknown metadata template: %s", key)
    }
    out := t
    out.Fields = append([]models.FieldDefinition(nil), t.Fields...)
    out.CriticalKeys = append([]string(nil), t.CriticalKeys...)
    return &out, nil
}

// builtinTemplates 内置模板定义
func builtinTemplates() []models.MetadataTemplate {
    return []models.MetadataTemplate{
        {
            TemplateKey:  BaseTemplateKey,
            CriticalKeys: []string{"documentType", "isLegible"},
            Fields: []models.FieldDefinition{
                {
                    Key:         "documentType",
                    DisplayName: "Document Type",
                    Description: "The type of financial document",
                    Type:        models.FieldTypeEnum,
                    Options: []string{
                        "1099", "W-2", "Account Statement", "Mortgage Statement",
                        "Trust Document", "Asset List", "1040",
                        "Personal Financial Statement", "Life Insurance Document", "Other",
                    },
                },
                {Key: "taxYear", DisplayName: "Tax Year", Type: models.FieldTypeDate},
                {Key: "issuerName", DisplayName: "Issuer Name", Type: models.FieldTypeString},
                {Key: "recipientName", DisplayName: "Recipient Name", Type: models.FieldTypeString},
                {Key: "documentDate", DisplayName: "Document Date", Type: models.FieldTypeDate},
                {Key: "accountOrPolicyNoMasked", DisplayName: "Account/Policy Number (Masked)", Type: models.FieldTypeString},
                {
                    Key:         "isLegible",
                    DisplayName: "Is Legible",
                    Type:        models.FieldTypeEnum,
                    Options:     []string{"Yes", "No"},
                },
            },
        },
        {
            TemplateKey:  AddressTemplateKey,
            CriticalKeys: []string{"validation_status"},
            Fields: []models.FieldDefinition{
                {Key: "street_address", DisplayName: "Street Address", Type: models.FieldTypeString},
                {Key: "city", DisplayName: "City", Type: models.FieldTypeString},
                {Key: "state_province", DisplayName: "State/Province", Type: models.FieldTypeString},
                {Key: "postal_code", DisplayName: "Postal Code", Type: models.FieldTypeString},
                {Key: "country", DisplayName: "Country", Type: models.FieldTypeString},
                {Key: "full_address", DisplayName: "Full Address", Type: models.FieldTypeString},
                {
                    Key:         "validation_status",
                    DisplayName: "Validation Status",
                    Type:        models.FieldTypeEnum,
                    Options:     []string{"Match", "Mismatch", "Partial Match", "Not Validated"},
                },
                {Key: "date_extracted", DisplayName: "Date Extracted", Type: models.FieldTypeDate},
            },
        },
        {
            TemplateKey:  "irs1099",
            CriticalKeys: []string{"formVariant"},
            Fields: []models.FieldDefinition{
                {
                    Key:         "formVariant",
                    DisplayName: "Form Variant",
                    Type:        models.FieldTypeEnum,
                    Options:     []string{"INT", "DIV", "B", "MISC", "NEC"},
                },
                {Key: "payerTinMasked", DisplayName: "Payer TIN (Masked)", Type: models.FieldTypeString},
                {Key: "recipientTinMasked", DisplayName: "Recipient TIN (Masked)", Type: models.FieldTypeString},
                {Key: "box1IncomeAmount", DisplayName: "Box 1 Income Amount", Type: models.FieldTypeFloat},
                {Key: "federalTaxWithheld", DisplayName: "Federal Tax Withheld", Type: models.FieldTypeFloat},
            },
        },
        {
            TemplateKey: "irsw2",
            Fields: []models.FieldDefinition{
                {Key: "employerEinMasked", DisplayName: "Employer EIN (Masked)", Type: models.FieldTypeString},
                {Key: "employeeSsnMasked", DisplayName: "Employee SSN (Masked)", Type: models.FieldTypeString},
                {Key: "box1Wages", DisplayName: "Box 1 Wages", Type: models.FieldTypeFloat},
                {Key: "box2FederalWithholding", DisplayName: "Box 2 Federal Withholding", Type: models.FieldTypeFloat},
            },
        },
        {
            TemplateKey: "accountStatement",
            Fields: []models.FieldDefinition{
                {Key: "institutionName", DisplayName: "Institution Name", Type: models.FieldTypeString},
                {
                    Key:         "accountType",
                    DisplayName: "Account Type",
                    Type:        models.FieldTypeEnum,
                    Options:     []string{"Checking", "Savings", "Brokerage"},
                },
                {Key: "accountNumberMasked", DisplayName: "Account Number (Masked)", Type: models.FieldTypeString},
                {Key: "statementDate", DisplayName: "Statement Date", Type: models.FieldTypeDate},
                {Key: "beginningBalance", DisplayName: "Beginning Balance", Type: models.FieldTypeFloat},
                {Key: "endingBalance", DisplayName: "Ending Balance", Type: models.FieldTypeFloat},
            },
        },
        {
            TemplateKey: "mortgageStatement",
            Fields: []models.FieldDefinition{
                {Key: "lenderName", DisplayName: "Lender Name", Type: models.FieldTypeString},
                {Key: "loanNumberMasked", DisplayName: "Loan Number (Masked)", Type: models.FieldTypeString},
                {Key: "statementDate", DisplayName: "Statement Date", Type: models.FieldTypeDate},
                {Key: "principalBalance", DisplayName: "Principal Balance", Type: models.FieldTypeFloat},
                {Key: "monthlyPayment", DisplayName: "Monthly Payment", Type: models.FieldTypeFloat},
            },
        },
        {
            TemplateKey: "otherDocument",
            Fields: []models.FieldDefinition{
                {Key: "documentDescription", DisplayName: "Document Description", Type: models.FieldTypeString},
                {Key: "documentDate", DisplayName: "Document Date", Type: models.FieldTypeDate},
            },
        },
    }
}

package boxclient

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/internal/normalize"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

const extractStructuredPath = "/2.0/ai/extract_structured"

// ExtractionClient 调用提取服务的结构化抽取端点
type ExtractionClient struct {
    client    *Client
    logger    logger.Logger
    longText  string
    basicText string
}

func NewExtractionClient(client *Client, longTextModel, basicTextModel string, log logger.Logger) *ExtractionClient {
    return &ExtractionClient{
        client:    client,
        logger:    log,
        longText:  longTextModel,
        basicText: basicTextModel,
    }
}

type extractItem struct {
    ID   string `json:"id"`
    Type string `json:"type"`
}

type extractAgent struct {
    Type      string          `json:"type"`
    LongText  *extractModel   `json:"long_text,omitempty"`
    BasicText *extractModel   `json:"basic_text,omitempty"`
}

type extractModel struct {
    Model string `json:"model"`
}

type templateRef struct {
    TemplateKey string `json:"template_key"`
    Type        string `json:"type"`
    Scope       string `json:"scope"`
}

type extractField struct {
    Key         string   `json:"key"`
    DisplayName string   `json:"displayName,omitempty"`
    Description string   `json:"description,omitempty"`
    Type        string   `json:"type"`
    Options     []option `json:"options,omitempty"`
}

type option struct {
    Key string `json:"key"`
}

type extractRequest struct {
    Items            []extractItem  `json:"items"`
    Agent            extractAgent   `json:"ai_agent"`
    MetadataTemplate *templateRef   `json:"metadata_template,omitempty"`
    Fields           []extractField `json:"fields,omitempty"`
}

func (c *ExtractionClient) agent() extractAgent {
    return extractAgent{
        Type:      "ai_agent_extract_structured",
        LongText:  &extractModel{Model: c.longText},
        BasicText: &extractModel{Model: c.basicText},
    }
}

// ExtractWithTemplate 按模板引用做 schema 驱动的结构化抽取，返回原始响应体
func (c *ExtractionClient) ExtractWithTemplate(ctx context.Context, fileID, scope, templateKey string) ([]byte, error) {
    req := extractRequest{
        Items: []extractItem{{ID: fileID, Type: "file"}},
        Agent: c.agent(),
        MetadataTemplate: &templateRef{
            TemplateKey: templateKey,
            Type:        "metadata_template",
            Scope:       scope,
        },
    }
    return c.extract(ctx, fileID, req)
}

// ExtractWithFields 携带显式字段定义做抽取，用于远端没有注册的自定义模板
func (c *ExtractionClient) ExtractWithFields(ctx context.Context, fileID string, fields []models.FieldDefinition) ([]byte, error) {
    req := extractRequest{
        Items:  []extractItem{{ID: fileID, Type: "file"}},
        Agent:  c.agent(),
        Fields: toExtractFields(fields),
    }
    return c.extract(ctx, fileID, req)
}

func toExtractFields(fields []models.FieldDefinition) []extractField {
    out := make([]extractField, 0, len(fields))
    for _, f := range fields {
        ef := extractField{
            Key:         f.Key,
            DisplayName: f.DisplayName,
            Description: f.Description,
            Type:        string(f.Type),
        }
        for _, o := range f.Options {
            ef.Options = append(ef.Options, option{Key: o})
        }
        out = append(out, ef)
    }
    return out
}

func (c *ExtractionClient) extract(ctx context.Context, fileID string, req extractRequest) ([]byte, error) {
    body, err := json.Marshal(req)
    if err != nil {
        return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
    }

    status, data, err := c.client.do(ctx, http.MethodPost, extractStructuredPath, contentTypeJSON, body)
    if err != nil {
        c.logger.Warn("Extraction request failed",
            logger.String("fileId", fileID),
            logger.Error(err),
        )
        return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
    }

    switch {
    case status == http.StatusOK || status == http.StatusAccepted:
        return data, nil
    case status >= 500:
        return nil, fmt.Errorf("%w: status %d", ErrUnavailable, status)
    default:
        return nil, fmt.Errorf("extraction request rejected: status %d: %s", status, string(data))
    }
}

// ExtractDocumentType 以显式字段方式只抽取 documentType，供 AI 分类器使用
func (c *ExtractionClient) ExtractDocumentType(ctx context.Context, fileID string) (string, float64, error) {
    fields := []models.FieldDefinition{{
        Key:         "documentType",
        DisplayName: "Document Type",
        Description: "The type of financial document",
        Type:        models.FieldTypeEnum,
        Options: []string{
            "1099", "W-2", "Account Statement", "Mortgage Statement",
            "Trust Document", "Asset List", "1040",
            "Personal Financial Statement", "Life Insurance Document", "Other",
        },
    }}

    raw, err := c.ExtractWithFields(ctx, fileID, fields)
    if err != nil {
        return "", 0, err
    }

    result := normalize.Normalize(raw)
    if v, ok := result.Fields["documentType"].(string); ok && v != "" {
        return v, 0.9, nil
    }
    return "", 0, fmt.Errorf("provider returned no documentType for file %s", fileID)
}

package boxclient

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"

    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// PatchOp JSON Patch 单个操作
type PatchOp struct {
    Op    string      `json:"op"`
    Path  string      `json:"path"`
    Value interface{} `json:"value"`
}

// AddOp builds an additive set-field operation for key.
func AddOp(key string, value interface{}) PatchOp {
    return PatchOp{Op: "add", Path: "/" + key, Value: value}
}

// MetadataStoreClient 操作远端存储上的 file+template 元数据实例
type MetadataStoreClient struct {
    client *Client
    logger logger.Logger
}

func NewMetadataStoreClient(client *Client, log logger.Logger) *MetadataStoreClient {
    return &MetadataStoreClient{client: client, logger: log}
}

func instancePath(fileID, scope, templateKey string) string {
    return fmt.Sprintf("/2.0/files/%s/metadata/%s/%s", fileID, scope, templateKey)
}

// CreateInstance 无条件创建元数据实例；实例已存在返回 ErrConflict
func (m *MetadataStoreClient) CreateInstance(ctx context.Context, fileID, scope, templateKey string, fields map[string]interface{}) error {
    body, err := json.Marshal(fields)
    if err != nil {
        return fmt.Errorf("failed to marshal metadata: %w", err)
    }

    status, data, err := m.client.do(ctx, http.MethodPost, instancePath(fileID, scope, templateKey), contentTypeJSON, body)
    if err != nil {
        return fmt.Errorf("create metadata request failed: %w", err)
    }

    switch {
    case status >= 200 && status < 300:
        m.logger.Info("Created metadata instance",
            logger.String("fileId", fileID),
            logger.String("template", templateKey),
        )
        return nil
    case status == http.StatusConflict:
        return fmt.Errorf("%w: file %s template %s", ErrConflict, fileID, templateKey)
    default:
        return fmt.Errorf("failed to create metadata: status %d: %s", status, string(data))
    }
}

// UpdateInstance 以单个批量 JSON Patch 请求更新实例
func (m *MetadataStoreClient) UpdateInstance(ctx context.Context, fileID, scope, templateKey string, ops []PatchOp) error {
    if len(ops) == 0 {
        return nil
    }
    body, err := json.Marshal(ops)
    if err != nil {
        return fmt.Errorf("failed to marshal patch operations: %w", err)
    }

    status, data, err := m.client.do(ctx, http.MethodPut, instancePath(fileID, scope, templateKey), contentTypeJSONPatch, body)
    if err != nil {
        return fmt.Errorf("update metadata request failed: %w", err)
    }

    if status >= 200 && status < 300 {
        m.logger.Info("Updated metadata instance",
            logger.String("fileId", fileID),
            logger.String("template", templateKey),
            logger.Int("operations", len(ops)),
        )
        return nil
    }
    return fmt.Errorf("failed to update metadata: status %d: %s", status, string(data))
}

package boxclient

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// 远端服务的哨兵错误
var (
    // ErrConflict 元数据实例已存在（创建冲突，走更新路径）
    ErrConflict = errors.New("metadata instance already exists")
    // ErrUnavailable 提取服务不可用（网络错误、超时或 5xx）
    ErrUnavailable = errors.New("extraction provider unavailable")
)

const (
    contentTypeJSON      = "application/json"
    contentTypeJSONPatch = "application/json-patch+json"
)

// Config 远端 API 客户端配置
type Config struct {
    BaseURL     string
    AccessToken string
    Timeout     time.Duration
}

// Client 是经过认证的 HTTP 客户端，封装提取服务与元数据存储两组端点。
// 令牌的获取与刷新不在此层处理。
type Client struct {
    httpClient *http.Client
    baseURL    string
    token      string
    logger     logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) *Client {
    timeout := cfg.Timeout
    if timeout == 0 {
        timeout = 60 * time.Second
    }
    return &Client{
        httpClient: &http.Client{Timeout: timeout},
        baseURL:    cfg.BaseURL,
        token:      cfg.AccessToken,
        logger:     log,
    }
}

// do 发送请求并返回响应体；HTTP 层错误在各调用方归类
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
    var reader io.Reader
    if body != nil {
        reader = bytes.NewReader(body)
    }

    req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
    if err != nil {
        return 0, nil, fmt.Errorf("failed to build request: %w", err)
    }
    if contentType != "" {
        req.Header.Set("Content-Type", contentType)
    }
    if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    }

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return 0, nil, fmt.Errorf("request failed: %w", err)
    }
    defer resp.Body.Close()

    data, err := io.ReadAll(resp.Body)
    if err != nil {
        return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
    }
    return resp.StatusCode, data, nil
}

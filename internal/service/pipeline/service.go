package pipeline

import (
    "context"
    "time"

    "github.com/wahiggins3/wealth-metadata-engine/config"
    "github.com/wahiggins3/wealth-metadata-engine/internal/address"
    "github.com/wahiggins3/wealth-metadata-engine/internal/apply"
    "github.com/wahiggins3/wealth-metadata-engine/internal/boxclient"
    "github.com/wahiggins3/wealth-metadata-engine/internal/classify"
    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/internal/sanitize"
    "github.com/wahiggins3/wealth-metadata-engine/internal/template"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// Processor 驱动提取级联与批处理
type Processor interface {
    ProcessFile(ctx context.Context, file models.FileRef, ref address.Reference) *models.FileOutcome
    ProcessBatch(ctx context.Context, files []models.FileRef, ref address.Reference) *models.BatchOutcome
}

// Extractor 提取服务的调用端
type Extractor interface {
    ExtractWithTemplate(ctx context.Context, fileID, scope, templateKey string) ([]byte, error)
    ExtractWithFields(ctx context.Context, fileID string, fields []models.FieldDefinition) ([]byte, error)
}

// ServiceConfig 管道配置
type ServiceConfig struct {
    MaxConcurrent int
    FileTimeout   time.Duration
}

func defaultConfig() *ServiceConfig {
    return &ServiceConfig{
        MaxConcurrent: 10,
        FileTimeout:   5 * time.Minute,
    }
}

// GetService 按环境配置组装完整的处理管道
func GetService(log logger.Logger) (Processor, error) {
    storeCfg := config.GetStoreConfig()
    providerCfg := config.GetExtractionConfig()

    client := boxclient.NewClient(&boxclient.Config{
        BaseURL:     storeCfg.BaseURL,
        AccessToken: storeCfg.AccessToken,
        Timeout:     storeCfg.Timeout,
    }, log)

    extractor := boxclient.NewExtractionClient(client, providerCfg.LongTextModel, providerCfg.BasicTextModel, log)
    store := boxclient.NewMetadataStoreClient(client, log)

    registry := template.NewRegistry(storeCfg.Scope)
    if providerCfg.TemplateFile != "" {
        if err := registry.LoadFile(providerCfg.TemplateFile); err != nil {
            return nil, err
        }
    }

    cfg := defaultConfig()
    if providerCfg.MaxConcurrent > 0 {
        cfg.MaxConcurrent = providerCfg.MaxConcurrent
    }
    if providerCfg.FileTimeout > 0 {
        cfg.FileTimeout = providerCfg.FileTimeout
    }

    return NewService(
        extractor,
        store,
        registry,
        classify.NewAIClassifier(extractor),
        classify.NewFilenameClassifier(),
        log,
        cfg,
    ), nil
}

// NewService wires the pipeline from its parts; tests inject fakes here.
func NewService(
    extractor Extractor,
    store apply.Store,
    registry *template.Registry,
    aiClassifier classify.Classifier,
    fallback classify.Classifier,
    log logger.Logger,
    cfg *ServiceConfig,
) Processor {
    if cfg == nil {
        cfg = defaultConfig()
    }
    return &Service{
        extractor:    extractor,
        applier:      apply.NewApplier(store, log),
        registry:     registry,
        aiClassifier: aiClassifier,
        fallback:     fallback,
        sanitizer:    sanitize.NewSanitizer(log),
        logger:       log,
        config:       cfg,
        now:          time.Now,
    }
}

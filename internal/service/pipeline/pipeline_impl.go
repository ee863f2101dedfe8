package pipeline

import (
    "context"
    "time"

    "github.com/wahiggins3/wealth-metadata-engine/internal/address"
    "github.com/wahiggins3/wealth-metadata-engine/internal/apply"
    "github.com/wahiggins3/wealth-metadata-engine/internal/classify"
    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/internal/normalize"
    "github.com/wahiggins3/wealth-metadata-engine/internal/sanitize"
    "github.com/wahiggins3/wealth-metadata-engine/internal/template"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

type Service struct {
    extractor    Extractor
    applier      *apply.Applier
    registry     *template.Registry
    aiClassifier classify.Classifier
    fallback     classify.Classifier
    sanitizer    *sanitize.Sanitizer
    logger       logger.Logger
    config       *ServiceConfig
    now          func() time.Time
}

// ProcessFile 对单个文件执行三段级联：基础模板 -> 类型模板 -> 地址校验。
// 各阶段互相隔离，后续阶段失败不影响已写入的结果。
func (s *Service) ProcessFile(ctx context.Context, file models.FileRef, ref address.Reference) *models.FileOutcome {
    outcome := &models.FileOutcome{
        File:      file,
        StartedAt: s.now(),
    }
    defer func() { outcome.FinishedAt = s.now() }()

    s.logger.Info("Processing file",
        logger.String("fileId", file.ID),
        logger.String("filename", file.Name),
    )

    // 阶段一：基础模板
    baseFields, ok := s.runBaseStage(ctx, file, outcome)
    if !ok {
        // 提供方不可用，降级为启发式分类，级联到此为止
        s.applyFallbackClassification(ctx, file, outcome)
        return outcome
    }

    outcome.Classification = s.resolveClassification(ctx, file, baseFields)

    // 阶段二：类型模板
    s.runTypeStage(ctx, file, outcome)

    // 阶段三：地址校验，不依赖文档类型
    s.runAddressStage(ctx, file, ref, outcome)

    return outcome
}

// runBaseStage 提取并写入基础模板；返回清洗后的字段与提取是否可用
func (s *Service) runBaseStage(ctx context.Context, file models.FileRef, outcome *models.FileOutcome) (models.FieldMap, bool) {
    tpl, err := s.registry.Template(template.BaseTemplateKey)
    if err != nil {
        outcome.Error = err.Error()
        return nil, false
    }

    raw, err := s.extractor.ExtractWithTemplate(ctx, file.ID, tpl.Scope, tpl.TemplateKey)
    if err != nil {
        s.logger.Warn("Base extraction failed",
            logger.String("fileId", file.ID),
            logger.Error(err),
        )
        outcome.Base = &models.StageOutcome{TemplateKey: tpl.TemplateKey, Error: err.Error()}
        return nil, false
    }

    result := normalize.Normalize(raw)
    if result.TemplateEcho || result.Empty() {
        // 模板回显或空响应等同于提取失败
        s.logger.Warn("Base extraction returned no usable data",
            logger.String("fileId", file.ID),
            logger.Bool("templateEcho", result.TemplateEcho),
        )
        outcome.Base = &models.StageOutcome{TemplateKey: tpl.TemplateKey, Error: "provider returned no usable data"}
        return nil, false
    }

    sanitized, rejected := s.sanitizer.Sanitize(tpl, result.Fields)
    applied := s.applier.Apply(ctx, file.ID, tpl, sanitized)
    applied.Rejected = append(applied.Rejected, rejected...)
    outcome.Base = &models.StageOutcome{TemplateKey: tpl.TemplateKey, Outcome: applied}

    return sanitized, true
}

// applyFallbackClassification 以启发式分类兜底，只写入分类相关字段
func (s *Service) applyFallbackClassification(ctx context.Context, file models.FileRef, outcome *models.FileOutcome) {
    cls, err := s.fallback.Classify(ctx, file)
    if err != nil {
        outcome.Error = err.Error()
        return
    }
    outcome.Classification = cls

    tpl, err := s.registry.Template(template.BaseTemplateKey)
    if err != nil {
        outcome.Error = err.Error()
        return
    }

    meta := models.FieldMap{"documentType": cls.DocumentType}
    sanitized, _ := s.sanitizer.Sanitize(tpl, meta)
    applied := s.applier.Apply(ctx, file.ID, tpl, sanitized)

    if outcome.Base == nil {
        outcome.Base = &models.StageOutcome{TemplateKey: tpl.TemplateKey}
    }
    outcome.Base.Outcome = applied
}

// resolveClassification 优先使用基础阶段提取出的类型；缺失时退回 AI 分类器，
// 再失败则用文件名启发式
func (s *Service) resolveClassification(ctx context.Context, file models.FileRef, baseFields models.FieldMap) models.DocumentClassification {
    if docType, ok := baseFields["documentType"].(string); ok && docType != "" {
        return models.DocumentClassification{
            DocumentType: docType,
            Confidence:   0.9,
            Source:       models.SourceAI,
        }
    }

    if cls, err := s.aiClassifier.Classify(ctx, file); err == nil {
        return cls
    }

    cls, _ := s.fallback.Classify(ctx, file)
    return cls
}

// runTypeStage 提取并写入类型专属模板；Other 与未映射类型跳过
func (s *Service) runTypeStage(ctx context.Context, file models.FileRef, outcome *models.FileOutcome) {
    docType := outcome.Classification.DocumentType
    if docType == "" || docType == "Other" {
        return
    }
    key, ok := template.TemplateKeyForDocumentType(docType)
    if !ok || key == "otherDocument" {
        return
    }

    tpl, err := s.registry.Template(key)
    if err != nil {
        // 类型在映射表中但模板目录里没有定义
        outcome.TypeSpecific = &models.StageOutcome{TemplateKey: key, Error: err.Error()}
        return
    }

    raw, err := s.extractor.ExtractWithTemplate(ctx, file.ID, tpl.Scope, tpl.TemplateKey)
    if err != nil {
        outcome.TypeSpecific = &models.StageOutcome{TemplateKey: key, Error: err.Error()}
        return
    }

    result := normalize.Normalize(raw)
    sanitized, rejected := s.sanitizer.Sanitize(tpl, result.Fields)
    applied := s.applier.Apply(ctx, file.ID, tpl, sanitized)
    applied.Rejected = append(applied.Rejected, rejected...)
    outcome.TypeSpecific = &models.StageOutcome{TemplateKey: key, Outcome: applied}
}

// runAddressStage 提取地址字段、与参考地址比对并写入校验结果
func (s *Service) runAddressStage(ctx context.Context, file models.FileRef, ref address.Reference, outcome *models.FileOutcome) {
    tpl, err := s.registry.Template(template.AddressTemplateKey)
    if err != nil {
        outcome.Address = &models.StageOutcome{TemplateKey: template.AddressTemplateKey, Error: err.Error()}
        return
    }

    // 地址模板未在远端注册，携带显式字段定义提取
    raw, err := s.extractor.ExtractWithFields(ctx, file.ID, tpl.Fields)
    if err != nil {
        outcome.Address = &models.StageOutcome{TemplateKey: tpl.TemplateKey, Error: err.Error()}
        return
    }

    result := normalize.Normalize(raw)
    sanitized, rejected := s.sanitizer.Sanitize(tpl, result.Fields)

    compared := address.Compare(ref, sanitized)
    outcome.AddressMatch = compared.Classification

    s.decorateAddressFields(sanitized, compared)

    applied := s.applier.Apply(ctx, file.ID, tpl, sanitized)
    applied.Rejected = append(applied.Rejected, rejected...)
    outcome.Address = &models.StageOutcome{TemplateKey: tpl.TemplateKey, Outcome: applied}
}

// decorateAddressFields 补全 full_address、date_extracted 与 validation_status
func (s *Service) decorateAddressFields(sanitized models.FieldMap, compared address.Result) {
    if _, ok := sanitized["full_address"]; !ok {
        full := address.JoinComponents(
            stringValue(sanitized, "street_address"),
            stringValue(sanitized, "city"),
            stringValue(sanitized, "state_province"),
            stringValue(sanitized, "postal_code"),
        )
        if full != "" {
            sanitized["full_address"] = full
        }
    }

    if _, ok := sanitized["date_extracted"]; !ok {
        sanitized["date_extracted"] = s.now().Format(sanitize.DateLayout)
    }

    sanitized["validation_status"] = address.ValidationStatus(compared.Classification)
}

func stringValue(m models.FieldMap, key string) string {
    if v, ok := m[key].(string); ok {
        return v
    }
    return ""
}

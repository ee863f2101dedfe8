package classify

import (
    "context"
    "fmt"
    "strings"

    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

// Classifier 文档类型分类策略
type Classifier interface {
    Classify(ctx context.Context, file models.FileRef) (models.DocumentClassification, error)
}

// heuristicConfidence 启发式结果的固定低置信度
const heuristicConfidence = 0.3

// filenameRule 文件名关键词规则，按声明顺序匹配
type filenameRule struct {
    keywords     []string
    requireAll   bool
    documentType string
}

var filenameRules = []filenameRule{
    {keywords: []string{"1099"}, documentType: "1099"},
    {keywords: []string{"w-2"}, documentType: "W-2"},
    {keywords: []string{"w2"}, documentType: "W-2"},
    {keywords: []string{"statement", "account"}, requireAll: true, documentType: "Account Statement"},
    {keywords: []string{"statement", "bank"}, requireAll: true, documentType: "Account Statement"},
    {keywords: []string{"statement", "brokerage"}, requireAll: true, documentType: "Account Statement"},
    {keywords: []string{"mortgage"}, documentType: "Mortgage Statement"},
    {keywords: []string{"trust"}, documentType: "Trust Document"},
    {keywords: []string{"asset", "list"}, requireAll: true, documentType: "Asset List"},
    {keywords: []string{"1040"}, documentType: "1040"},
    {keywords: []string{"financial", "statement"}, requireAll: true, documentType: "Personal Financial Statement"},
    {keywords: []string{"insurance"}, documentType: "Life Insurance Document"},
}

// FilenameClassifier 基于文件名关键词的启发式分类器，永不失败
type FilenameClassifier struct{}

func NewFilenameClassifier() *FilenameClassifier {
    return &FilenameClassifier{}
}

func (c *FilenameClassifier) Classify(_ context.Context, file models.FileRef) (models.DocumentClassification, error) {
    return ClassifyFilename(file.Name), nil
}

// ClassifyFilename applies the keyword rules to a filename. Unmatched names
// classify as "Other".
func ClassifyFilename(name string) models.DocumentClassification {
    lower := strings.ToLower(name)
    for _, rule := range filenameRules {
        if rule.matches(lower) {
            return models.DocumentClassification{
                DocumentType: rule.documentType,
                Confidence:   heuristicConfidence,
                Source:       models.SourceHeuristic,
            }
        }
    }
    return models.DocumentClassification{
        DocumentType: "Other",
        Confidence:   heuristicConfidence,
        Source:       models.SourceHeuristic,
    }
}

func (r filenameRule) matches(name string) bool {
    if r.requireAll {
        for _, kw := range r.keywords {
            if !strings.Contains(name, kw) {
                return false
            }
        }
        return true
    }
    for _, kw := range r.keywords {
        if strings.Contains(name, kw) {
            return true
        }
    }
    return false
}

// TypeExtractor 面向提供方的类型抽取（由 boxclient 实现）
type TypeExtractor interface {
    ExtractDocumentType(ctx context.Context, fileID string) (string, float64, error)
}

// AIClassifier 通过提取服务做 prompt 驱动的类型判定
type AIClassifier struct {
    extractor TypeExtractor
}

func NewAIClassifier(extractor TypeExtractor) *AIClassifier {
    return &AIClassifier{extractor: extractor}
}

func (c *AIClassifier) Classify(ctx context.Context, file models.FileRef) (models.DocumentClassification, error) {
    docType, confidence, err := c.extractor.ExtractDocumentType(ctx, file.ID)
    if err != nil {
        return models.DocumentClassification{}, fmt.Errorf("ai classification failed: %w", err)
    }
    if confidence == 0 {
        confidence = 0.9
    }
    return models.DocumentClassification{
        DocumentType: docType,
        Confidence:   confidence,
        Source:       models.SourceAI,
    }, nil
}

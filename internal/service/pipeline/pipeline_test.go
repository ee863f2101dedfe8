package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahiggins3/wealth-metadata-engine/internal/address"
	"github.com/wahiggins3/wealth-metadata-engine/internal/boxclient"
	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/internal/template"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// fakeExtractor 按模板 key 返回预置响应
type fakeExtractor struct {
	mu          sync.Mutex
	byTemplate  map[string][]byte
	errByKey    map[string]error
	fieldsResp  []byte
	fieldsErr   error
	blockFields bool
}

func (f *fakeExtractor) ExtractWithTemplate(ctx context.Context, fileID, scope, templateKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errByKey[templateKey]; ok {
		return nil, err
	}
	return f.byTemplate[templateKey], nil
}

func (f *fakeExtractor) ExtractWithFields(ctx context.Context, fileID string, fields []models.FieldDefinition) ([]byte, error) {
	if f.blockFields {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.fieldsResp, f.fieldsErr
}

// fakeStore 按模板 key 记录写入
type fakeStore struct {
	mu      sync.Mutex
	creates map[string]map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{creates: make(map[string]map[string]interface{})}
}

func (f *fakeStore) CreateInstance(_ context.Context, _, _, templateKey string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates[templateKey] = fields
	return nil
}

func (f *fakeStore) UpdateInstance(_ context.Context, _, _, _ string, _ []boxclient.PatchOp) error {
	return nil
}

type fakeClassifier struct {
	cls models.DocumentClassification
	err error
}

func (f *fakeClassifier) Classify(_ context.Context, file models.FileRef) (models.DocumentClassification, error) {
	if f.err != nil {
		return models.DocumentClassification{}, f.err
	}
	if f.cls.DocumentType == "" {
		return models.DocumentClassification{
			DocumentType: "Other",
			Confidence:   0.3,
			Source:       models.SourceHeuristic,
		}, nil
	}
	return f.cls, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)
}

func newTestService(extractor *fakeExtractor, store *fakeStore, ai, fallback *fakeClassifier, cfg *ServiceConfig) *Service {
	svc := NewService(
		extractor,
		store,
		template.NewRegistry("enterprise_123"),
		ai,
		fallback,
		logger.NewTestLogger(),
		cfg,
	).(*Service)
	svc.now = fixedNow
	return svc
}

func TestProcessFileFullCascade(t *testing.T) {
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "W-2", "issuerName": "Acme Corp", "isLegible": "Yes"}}`),
			"irsw2":                 []byte(`{"answer": {"box1Wages": "$52,000.50", "employerEinMasked": "XX-XXX1234"}}`),
		},
		fieldsResp: []byte(`{"answer": {"street_address": "123 Main St", "city": "Springfield", "state_province": "IL", "postal_code": "62704"}}`),
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, nil)

	ref := address.Reference{StreetAddress: "123 Main St", City: "Springfield", StateProvince: "IL", PostalCode: "62704"}
	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "w2.pdf"}, ref)

	// 分类来自基础阶段提取出的 documentType
	assert.Equal(t, "W-2", outcome.Classification.DocumentType)
	assert.Equal(t, models.SourceAI, outcome.Classification.Source)

	require.NotNil(t, outcome.Base)
	assert.Equal(t, models.ApplyCreated, outcome.Base.Outcome.Result)
	assert.Equal(t, "W-2", store.creates["financialDocumentBase"]["documentType"])

	require.NotNil(t, outcome.TypeSpecific)
	assert.Equal(t, "irsw2", outcome.TypeSpecific.TemplateKey)
	assert.Equal(t, 52000.50, store.creates["irsw2"]["box1Wages"])

	require.NotNil(t, outcome.Address)
	assert.Equal(t, models.AddressExact, outcome.AddressMatch)
	addr := store.creates["address_validation"]
	assert.Equal(t, "Match", addr["validation_status"])
	assert.Equal(t, "123 Main St, Springfield, IL, 62704", addr["full_address"])
	// date_extracted 缺省取处理时间，线格式为 RFC3339
	assert.Equal(t, "2025-08-30T00:00:00Z", addr["date_extracted"])
}

func TestProcessFileProviderDownFallsBackToHeuristic(t *testing.T) {
	extractor := &fakeExtractor{
		errByKey: map[string]error{
			"financialDocumentBase": fmt.Errorf("%w: status 503", boxclient.ErrUnavailable),
		},
	}
	store := newFakeStore()
	fallback := &fakeClassifier{cls: models.DocumentClassification{
		DocumentType: "W-2",
		Confidence:   0.3,
		Source:       models.SourceHeuristic,
	}}
	svc := newTestService(extractor, store, &fakeClassifier{}, fallback, nil)

	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "2023_W2_JohnDoe.pdf"}, address.Reference{})

	assert.Equal(t, models.SourceHeuristic, outcome.Classification.Source)
	assert.Equal(t, "W-2", outcome.Classification.DocumentType)

	// 降级只写入分类字段，级联不再继续
	base := store.creates["financialDocumentBase"]
	require.NotNil(t, base)
	assert.Equal(t, "W-2", base["documentType"])
	assert.Len(t, base, 1)
	assert.Nil(t, outcome.TypeSpecific)
	assert.Nil(t, outcome.Address)
}

func TestProcessFileTemplateEchoTreatedAsFailure(t *testing.T) {
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"fields": [{"key": "documentType", "prompt": "what kind", "type": "enum"}]}`),
		},
	}
	store := newFakeStore()
	fallback := &fakeClassifier{cls: models.DocumentClassification{
		DocumentType: "Other",
		Confidence:   0.3,
		Source:       models.SourceHeuristic,
	}}
	svc := newTestService(extractor, store, &fakeClassifier{}, fallback, nil)

	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "scan.pdf"}, address.Reference{})

	assert.Equal(t, models.SourceHeuristic, outcome.Classification.Source)
	assert.Nil(t, outcome.TypeSpecific)
}

func TestProcessFileOtherSkipsTypeStage(t *testing.T) {
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "Other"}}`),
		},
		fieldsResp: []byte(`{"answer": {}}`),
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, nil)

	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "misc.pdf"}, address.Reference{})

	assert.Nil(t, outcome.TypeSpecific)
	assert.NotContains(t, store.creates, "otherDocument")
}

func TestProcessFileUnregisteredTypeTemplateRecordsError(t *testing.T) {
	// Trust Document 映射到 trustDocument，但模板目录没有这个定义
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "Trust Document"}}`),
		},
		fieldsResp: []byte(`{"answer": {}}`),
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, nil)

	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "trust.pdf"}, address.Reference{})

	require.NotNil(t, outcome.TypeSpecific)
	assert.Equal(t, "trustDocument", outcome.TypeSpecific.TemplateKey)
	assert.NotEmpty(t, outcome.TypeSpecific.Error)
	assert.Nil(t, outcome.TypeSpecific.Outcome)
}

func TestProcessFileAddressNotEvaluatedWithoutReference(t *testing.T) {
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "Other"}}`),
		},
		fieldsResp: []byte(`{"answer": {"city": "Springfield"}}`),
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, nil)

	outcome := svc.ProcessFile(context.Background(), models.FileRef{ID: "f1", Name: "misc.pdf"}, address.Reference{})

	assert.Equal(t, models.AddressNotEvaluated, outcome.AddressMatch)
	assert.Equal(t, "Not Validated", store.creates["address_validation"]["validation_status"])
}

func TestProcessBatchAggregatesOutcomes(t *testing.T) {
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "Other"}}`),
		},
		fieldsResp: []byte(`{"answer": {}}`),
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, &ServiceConfig{
		MaxConcurrent: 2,
		FileTimeout:   time.Minute,
	})

	files := []models.FileRef{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}}
	batch := svc.ProcessBatch(context.Background(), files, address.Reference{})

	assert.NotEmpty(t, batch.BatchID)
	require.Len(t, batch.Files, 3)

	seen := make(map[string]bool)
	for _, f := range batch.Files {
		seen[f.File.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestProcessBatchTimeoutIsolation(t *testing.T) {
	// 地址阶段挂起的文件触发超时，不影响兄弟文件
	extractor := &fakeExtractor{
		byTemplate: map[string][]byte{
			"financialDocumentBase": []byte(`{"answer": {"documentType": "Other"}}`),
		},
		blockFields: true,
	}
	store := newFakeStore()
	svc := newTestService(extractor, store, &fakeClassifier{}, &fakeClassifier{}, &ServiceConfig{
		MaxConcurrent: 2,
		FileTimeout:   50 * time.Millisecond,
	})

	batch := svc.ProcessBatch(context.Background(), []models.FileRef{{ID: "f1"}, {ID: "f2"}}, address.Reference{})

	require.Len(t, batch.Files, 2)
	for _, f := range batch.Files {
		// 基础阶段已完成，超时体现在地址阶段或文件级错误上
		if f.Error != "" {
			assert.Contains(t, f.Error, "timed out")
		} else {
			require.NotNil(t, f.Address)
			assert.NotEmpty(t, f.Address.Error)
		}
	}
}

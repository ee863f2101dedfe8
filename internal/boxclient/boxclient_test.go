package boxclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(&Config{
		BaseURL:     srv.URL,
		AccessToken: "test-token",
	}, logger.NewTestLogger())
	return client, srv
}

func TestCreateInstanceSuccess(t *testing.T) {
	var gotAuth, gotContentType, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	})

	store := NewMetadataStoreClient(client, logger.NewTestLogger())
	err := store.CreateInstance(context.Background(), "f1", "enterprise_123", "financialDocumentBase", map[string]interface{}{
		"documentType": "W-2",
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "/2.0/files/f1/metadata/enterprise_123/financialDocumentBase", gotPath)
}

func TestCreateInstanceConflict(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	store := NewMetadataStoreClient(client, logger.NewTestLogger())
	err := store.CreateInstance(context.Background(), "f1", "enterprise_123", "financialDocumentBase", map[string]interface{}{
		"documentType": "W-2",
	})

	assert.True(t, errors.Is(err, ErrConflict))
}

func TestUpdateInstanceSendsJSONPatch(t *testing.T) {
	var gotContentType string
	var gotOps []PatchOp
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOps))
		w.WriteHeader(http.StatusOK)
	})

	store := NewMetadataStoreClient(client, logger.NewTestLogger())
	err := store.UpdateInstance(context.Background(), "f1", "enterprise_123", "financialDocumentBase", []PatchOp{
		AddOp("documentType", "W-2"),
		AddOp("box1Wages", 52000.5),
	})

	require.NoError(t, err)
	assert.Equal(t, "application/json-patch+json", gotContentType)
	require.Len(t, gotOps, 2)
	assert.Equal(t, "add", gotOps[0].Op)
	assert.Equal(t, "/documentType", gotOps[0].Path)
	assert.Equal(t, "W-2", gotOps[0].Value)
}

func TestUpdateInstanceNoOpsIsNoop(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	store := NewMetadataStoreClient(client, logger.NewTestLogger())
	require.NoError(t, store.UpdateInstance(context.Background(), "f1", "s", "t", nil))
	assert.False(t, called)
}

func TestExtractWithTemplateRequestShape(t *testing.T) {
	var got extractRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, extractStructuredPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"answer": {"documentType": "W-2"}}`))
	})

	ec := NewExtractionClient(client, "model-long", "model-basic", logger.NewTestLogger())
	raw, err := ec.ExtractWithTemplate(context.Background(), "f1", "enterprise_123", "financialDocumentBase")

	require.NoError(t, err)
	assert.Contains(t, string(raw), "W-2")
	require.Len(t, got.Items, 1)
	assert.Equal(t, "f1", got.Items[0].ID)
	assert.Equal(t, "file", got.Items[0].Type)
	assert.Equal(t, "ai_agent_extract_structured", got.Agent.Type)
	assert.Equal(t, "model-long", got.Agent.LongText.Model)
	require.NotNil(t, got.MetadataTemplate)
	assert.Equal(t, "financialDocumentBase", got.MetadataTemplate.TemplateKey)
	assert.Equal(t, "enterprise_123", got.MetadataTemplate.Scope)
	assert.Empty(t, got.Fields)
}

func TestExtractWithFieldsRequestShape(t *testing.T) {
	var got extractRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	})

	ec := NewExtractionClient(client, "model-long", "model-basic", logger.NewTestLogger())
	_, err := ec.ExtractWithFields(context.Background(), "f1", []models.FieldDefinition{
		{Key: "city", Type: models.FieldTypeString},
		{Key: "validation_status", Type: models.FieldTypeEnum, Options: []string{"Match", "Mismatch"}},
	})

	require.NoError(t, err)
	assert.Nil(t, got.MetadataTemplate)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "city", got.Fields[0].Key)
	require.Len(t, got.Fields[1].Options, 2)
	assert.Equal(t, "Match", got.Fields[1].Options[0].Key)
}

func TestExtractServerErrorIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ec := NewExtractionClient(client, "l", "b", logger.NewTestLogger())
	_, err := ec.ExtractWithTemplate(context.Background(), "f1", "s", "t")

	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestExtractRejectionIsNotUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	ec := NewExtractionClient(client, "l", "b", logger.NewTestLogger())
	_, err := ec.ExtractWithTemplate(context.Background(), "f1", "s", "t")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestExtractNetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, logger.NewTestLogger())
	ec := NewExtractionClient(client, "l", "b", logger.NewTestLogger())
	_, err := ec.ExtractWithTemplate(context.Background(), "f1", "s", "t")

	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestExtractDocumentType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": {"documentType": "Account Statement"}}`))
	})

	ec := NewExtractionClient(client, "l", "b", logger.NewTestLogger())
	docType, confidence, err := ec.ExtractDocumentType(context.Background(), "f1")

	require.NoError(t, err)
	assert.Equal(t, "Account Statement", docType)
	assert.Equal(t, 0.9, confidence)
}

func TestExtractDocumentTypeMissing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": {}}`))
	})

	ec := NewExtractionClient(client, "l", "b", logger.NewTestLogger())
	_, _, err := ec.ExtractDocumentType(context.Background(), "f1")

	assert.Error(t, err)
}

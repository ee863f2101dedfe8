package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

func TestRegistryBuiltinTemplates(t *testing.T) {
	r := NewRegistry("enterprise_123")

	base, err := r.Template(BaseTemplateKey)
	require.NoError(t, err)
	assert.Equal(t, "enterprise_123", base.Scope)
	assert.Equal(t, []string{"documentType", "isLegible"}, base.CriticalKeys)

	docType, ok := base.Field("documentType")
	require.True(t, ok)
	assert.Equal(t, models.FieldTypeEnum, docType.Type)
	assert.Contains(t, docType.Options, "W-2")

	addr, err := r.Template(AddressTemplateKey)
	require.NoError(t, err)
	status, ok := addr.Field("validation_status")
	require.True(t, ok)
	assert.Equal(t, []string{"Match", "Mismatch", "Partial Match", "Not Validated"}, status.Options)
}

func TestRegistryUnknownTemplate(t *testing.T) {
	r := NewRegistry("enterprise_123")

	_, err := r.Template("doesNotExist")
	assert.Error(t, err)
}

func TestRegistryReturnsCopy(t *testing.T) {
	r := NewRegistry("enterprise_123")

	first, err := r.Template(BaseTemplateKey)
	require.NoError(t, err)
	first.Fields[0].Key = "mutated"
	first.CriticalKeys[0] = "mutated"

	second, err := r.Template(BaseTemplateKey)
	require.NoError(t, err)
	assert.Equal(t, "documentType", second.Fields[0].Key)
	assert.Equal(t, "documentType", second.CriticalKeys[0])
}

func TestTemplateKeyForDocumentType(t *testing.T) {
	key, ok := TemplateKeyForDocumentType("W-2")
	require.True(t, ok)
	assert.Equal(t, "irsw2", key)

	key, ok = TemplateKeyForDocumentType("1099")
	require.True(t, ok)
	assert.Equal(t, "irs1099", key)

	_, ok = TemplateKeyForDocumentType("Shopping List")
	assert.False(t, ok)
}

func TestRegistryLoadFile(t *testing.T) {
	content := `
scope: enterprise_999
templates:
  - templateKey: irsw2
    fields:
      - key: box1Wages
        displayName: Box 1 Wages
        type: float
  - templateKey: customDoc
    criticalKeys: [docKind]
    fields:
      - key: docKind
        type: enum
        options: [A, B]
`
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRegistry("enterprise_123")
	require.NoError(t, r.LoadFile(path))

	assert.Equal(t, "enterprise_999", r.Scope())

	// 文件中的定义覆盖同名内置模板
	w2, err := r.Template("irsw2")
	require.NoError(t, err)
	assert.Len(t, w2.Fields, 1)
	assert.Equal(t, "enterprise_999", w2.Scope)

	custom, err := r.Template("customDoc")
	require.NoError(t, err)
	assert.Equal(t, []string{"docKind"}, custom.CriticalKeys)
}

func TestRegistryLoadFileRejectsEmptyKey(t *testing.T) {
	content := `
templates:
  - fields:
      - key: orphan
        type: string
`
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRegistry("enterprise_123")
	assert.Error(t, r.LoadFile(path))
}

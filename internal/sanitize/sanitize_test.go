package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

func testTemplate() *models.MetadataTemplate {
	return &models.MetadataTemplate{
		Scope:       "enterprise_123",
		TemplateKey: "financialDocumentBase",
		Fields: []models.FieldDefinition{
			{Key: "documentType", Type: models.FieldTypeEnum, Options: []string{"1099", "W-2", "Other"}},
			{Key: "issuerName", Type: models.FieldTypeString},
			{Key: "documentDate", Type: models.FieldTypeDate},
			{Key: "box1Wages", Type: models.FieldTypeFloat},
			{Key: "isLegible", Type: models.FieldTypeEnum, Options: []string{"Yes", "No"}},
		},
	}
}

func TestSanitizeDropsUndeclaredKeys(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{
		"documentType": "W-2",
		"surprise":     "not in schema",
	})

	assert.Equal(t, "W-2", out["documentType"])
	assert.NotContains(t, out, "surprise")
	// 未声明的键静默丢弃，不算拒绝
	assert.Empty(t, rejected)
}

func TestSanitizeDropsEmptyValues(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{
		"issuerName":   "   ",
		"documentType": nil,
	})

	assert.Empty(t, out)
	assert.Empty(t, rejected)
}

func TestSanitizeDateFormats(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	cases := map[string]string{
		"2025-07-21":           "2025-07-21",
		"07/21/2025":           "2025-07-21",
		"July 21, 2025":        "2025-07-21",
		"Jul 21, 2025":         "2025-07-21",
		"2025-07-21T00:00:00Z": "2025-07-21",
	}

	for input, want := range cases {
		out, rejected := s.Sanitize(testTemplate(), models.FieldMap{"documentDate": input})
		require.Empty(t, rejected, "input %q", input)
		assert.Equal(t, want, out["documentDate"], "input %q", input)
	}
}

func TestSanitizeRejectsBadDate(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{"documentDate": "sometime last year"})

	assert.NotContains(t, out, "documentDate")
	require.Len(t, rejected, 1)
	assert.Equal(t, "documentDate", rejected[0].Key)
}

func TestSanitizeFloatFromCurrencyString(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{"box1Wages": "$52,000.50"})

	require.Empty(t, rejected)
	assert.Equal(t, 52000.50, out["box1Wages"])
}

func TestSanitizeFloatRejectsNonNumeric(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{"box1Wages": "fifty-two thousand"})

	assert.NotContains(t, out, "box1Wages")
	require.Len(t, rejected, 1)
	assert.Equal(t, "box1Wages", rejected[0].Key)
}

func TestSanitizeEnumMembership(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{
		"isLegible":    "Yes",
		"documentType": "Maybe",
	})

	assert.Equal(t, "Yes", out["isLegible"])
	assert.NotContains(t, out, "documentType")
	require.Len(t, rejected, 1)
	assert.Equal(t, "documentType", rejected[0].Key)
}

func TestSanitizeStringCoercion(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())

	out, rejected := s.Sanitize(testTemplate(), models.FieldMap{"issuerName": 42.0})

	require.Empty(t, rejected)
	assert.Equal(t, "42", out["issuerName"])
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewSanitizer(logger.NewTestLogger())
	input := models.FieldMap{
		"documentType": "W-2",
		"issuerName":   "Acme Corp",
		"documentDate": "07/21/2025",
		"box1Wages":    "$1,000",
	}

	first, rejected := s.Sanitize(testTemplate(), input)
	require.Empty(t, rejected)

	// 已清洗的输出再清洗一遍必须得到相同结果
	second, rejected := s.Sanitize(testTemplate(), first)
	require.Empty(t, rejected)
	assert.Equal(t, first, second)
}

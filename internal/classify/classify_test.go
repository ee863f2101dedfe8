package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
)

func TestClassifyFilename(t *testing.T) {
	cases := map[string]string{
		"2023_W2_JohnDoe.pdf":          "W-2",
		"w-2_copy.pdf":                 "W-2",
		"1099-INT_2024.pdf":            "1099",
		"brokerage_statement_q3.pdf":   "Account Statement",
		"Bank Statement March.pdf":     "Account Statement",
		"mortgage_jan.pdf":             "Mortgage Statement",
		"family_trust_agreement.pdf":   "Trust Document",
		"asset_list_2025.xlsx":         "Asset List",
		"form_1040_2023.pdf":           "1040",
		"personal_financial_statement.pdf": "Personal Financial Statement",
		"life_insurance_policy.pdf":    "Life Insurance Document",
		"vacation_photos.zip":          "Other",
		"":                             "Other",
	}

	for name, want := range cases {
		cls := ClassifyFilename(name)
		assert.Equal(t, want, cls.DocumentType, "filename %q", name)
		assert.Equal(t, models.SourceHeuristic, cls.Source)
		assert.InDelta(t, 0.3, cls.Confidence, 0.001)
	}
}

func TestFilenameClassifierNeverFails(t *testing.T) {
	c := NewFilenameClassifier()

	cls, err := c.Classify(context.Background(), models.FileRef{ID: "1", Name: "whatever.bin"})
	require.NoError(t, err)
	assert.Equal(t, "Other", cls.DocumentType)
}

type fakeTypeExtractor struct {
	docType    string
	confidence float64
	err        error
}

func (f *fakeTypeExtractor) ExtractDocumentType(_ context.Context, _ string) (string, float64, error) {
	return f.docType, f.confidence, f.err
}

func TestAIClassifier(t *testing.T) {
	c := NewAIClassifier(&fakeTypeExtractor{docType: "W-2", confidence: 0.95})

	cls, err := c.Classify(context.Background(), models.FileRef{ID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "W-2", cls.DocumentType)
	assert.Equal(t, 0.95, cls.Confidence)
	assert.Equal(t, models.SourceAI, cls.Source)
}

func TestAIClassifierDefaultsConfidence(t *testing.T) {
	c := NewAIClassifier(&fakeTypeExtractor{docType: "1099"})

	cls, err := c.Classify(context.Background(), models.FileRef{ID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, 0.9, cls.Confidence)
}

func TestAIClassifierPropagatesError(t *testing.T) {
	c := NewAIClassifier(&fakeTypeExtractor{err: errors.New("provider down")})

	_, err := c.Classify(context.Background(), models.FileRef{ID: "f1"})
	assert.Error(t, err)
}

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestProviderConvertsDocuments(t *testing.T) {
	s, err := Provider(GeneratedContent)
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"email", "memo"}, s.Required)
	assert.Equal(t, []string{"email", "memo"}, s.PropertyOrdering)

	email := s.Properties["email"]
	require.NotNil(t, email)
	assert.Equal(t, []string{"subject_line", "greeting", "body_paragraphs", "closing", "signature"}, email.Required)
	assert.Equal(t, genai.TypeArray, email.Properties["body_paragraphs"].Type)
	assert.Equal(t, genai.TypeString, email.Properties["body_paragraphs"].Items.Type)

	sections := s.Properties["memo"].Properties["sections"]
	require.NotNil(t, sections.Items)
	assert.Equal(t, genai.TypeObject, sections.Items.Type)
	assert.Equal(t, []string{"title", "content"}, sections.Items.Required)
}

func TestProviderCarriesBounds(t *testing.T) {
	s := MustProvider(QualityReview)
	score := s.Properties["overall_score"]
	require.NotNil(t, score)
	assert.Equal(t, genai.TypeNumber, score.Type)
	require.NotNil(t, score.Minimum)
	require.NotNil(t, score.Maximum)
	assert.Equal(t, 0.0, *score.Minimum)
	assert.Equal(t, 100.0, *score.Maximum)
}

func TestProviderRejectsUnsupported(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"missing type":   `{"properties": {}}`,
		"null type":      `{"type": "null"}`,
		"bad property":   `{"type": "object", "properties": {"a": {"type": "date"}}}`,
		"bad items":      `{"type": "array", "items": {"type": "tuple"}}`,
		"property value": `{"type": "object", "properties": {"a": 1}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Provider(doc)
			assert.Error(t, err)
		})
	}
}

func TestBuiltInDocumentsConvert(t *testing.T) {
	for name, doc := range map[string]string{
		"context":  ContextAnalysis,
		"strategy": Strategy,
		"content":  GeneratedContent,
		"qa":       QualityReview,
		"resume":   ResumeData,
	} {
		_, err := Provider(doc)
		assert.NoError(t, err, "schema %s should convert", name)
	}
}

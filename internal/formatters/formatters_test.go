package formatters

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyforge/internal/types"
)

func sampleResult() *types.PipelineResult {
	return &types.PipelineResult{
		Email: types.EmailDraft{
			SubjectLine:    "Application for Platform Engineer",
			Greeting:       "Dear Hiring Team,",
			BodyParagraphs: []string{"First paragraph.", "Second paragraph."},
			Closing:        "Best regards,",
			Signature:      "Alex Kim",
			FollowUpNote:   "Follow up in one week",
		},
		Memo: types.MemoDraft{
			Title:      "Positioning Memo",
			AuthorInfo: types.ContactInfo{Name: "Alex Kim"},
			Sections:   []types.MemoSection{{Title: "Fit", Content: "Strong Go background"}},
		},
		QualityScore: 92,
		ContextAnalysis: types.ContextAnalysis{
			JobRequirements:  []string{"Go"},
			KeySkillsMatched: []string{"Go", "Kubernetes"},
		},
		Strategy: types.Strategy{Approach: "Lead with infra work", KeyPoints: []string{"Scale"}},
		QualityAnalysis: types.QualityReview{
			OverallScore: 92,
			Extra:        map[string]json.RawMessage{"tone": json.RawMessage(`"confident"`)},
		},
	}
}

func sampleResume() *types.ResumeData {
	return &types.ResumeData{
		Experience: []types.Experience{{Title: "Engineer", Company: "Acme", Duration: "2020-2024", Highlights: []string{"Shipped v2"}}},
		Skills:     []string{"Go", "Redis"},
		Education:  []types.Education{{Degree: "BSc", School: "State", Year: "2019"}},
		Contact:    types.ContactInfo{Name: "Alex Kim", Email: "alex@example.com"},
	}
}

func TestFormatPipelineResult(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"Subject: Application for Platform Engineer", "=== POSITIONING MEMO ===", "Overall Score: 92/100", `tone: "confident"`, "- Kubernetes"}},
		{"markdown", []string{"**Subject:** Application for Platform Engineer", "## Fit", "**Overall Score:** 92/100", "| tone |"}},
		{"json", []string{`"quality_score": 92`, `"subject_line": "Application for Platform Engineer"`}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := GlobalRegistry.Format(sampleResult(), tt.format)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatResume(t *testing.T) {
	text, err := GlobalRegistry.Format(sampleResume(), "text")
	require.NoError(t, err)
	assert.Contains(t, text, "Engineer at Acme (2020-2024)")
	assert.Contains(t, text, "Go, Redis")

	md, err := GlobalRegistry.Format(*sampleResume(), "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# Alex Kim\n"))
	assert.Contains(t, md, "- **BSc**, State (2019)")
}

func TestFormatErrors(t *testing.T) {
	_, err := GlobalRegistry.Format(sampleResult(), "yaml")
	assert.Error(t, err)

	_, err = GlobalRegistry.Format(map[string]int{"a": 1}, "text")
	assert.Error(t, err)

	_, err = (&ResultTextFormatter{}).Format(sampleResume())
	assert.Error(t, err)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "92", formatScore(92))
	assert.Equal(t, "87.5", formatScore(87.5))
}

func TestSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}

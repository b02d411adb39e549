package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ContactInfo is the candidate's contact block
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Experience is one position held by the candidate
type Experience struct {
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Duration   string   `json:"duration"`
	Highlights []string `json:"highlights"`
}

// Education is one degree or certificate
type Education struct {
	Degree string `json:"degree"`
	School string `json:"school"`
	Year   string `json:"year"`
}

// ResumeData is the structured résumé every stage reads from. It is either
// produced by extraction or supplied by the caller.
type ResumeData struct {
	Experience []Experience `json:"experience"`
	Skills     []string     `json:"skills"`
	Education  []Education  `json:"education"`
	Contact    ContactInfo  `json:"contact"`
}

// ContextAnalysis is the output of the context stage
type ContextAnalysis struct {
	JobRequirements  []string `json:"job_requirements"`
	CompanyCulture   []string `json:"company_culture"`
	KeySkillsMatched []string `json:"key_skills_matched"`
}

// Strategy is the output of the strategy stage
type Strategy struct {
	Approach  string   `json:"approach"`
	KeyPoints []string `json:"key_points"`
}

// EmailDraft is the generated application email
type EmailDraft struct {
	SubjectLine    string   `json:"subject_line"`
	Greeting       string   `json:"greeting"`
	BodyParagraphs []string `json:"body_paragraphs"`
	Closing        string   `json:"closing"`
	Signature      string   `json:"signature"`
	FollowUpNote   string   `json:"follow_up_note,omitempty"`
}

// MemoSection is one titled block of the strategy memo
type MemoSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MemoDraft is the generated strategy memo
type MemoDraft struct {
	Title      string        `json:"title"`
	AuthorInfo ContactInfo   `json:"author_info"`
	Sections   []MemoSection `json:"sections"`
}

// GeneratedContent is the output of the content stage
type GeneratedContent struct {
	Email EmailDraft `json:"email"`
	Memo  MemoDraft  `json:"memo"`
}

// QualityReview is the output of the qa stage. Only OverallScore is typed;
// whatever else the provider returns (sub-scores, suggestions, tone notes)
// is kept verbatim in Extra.
type QualityReview struct {
	OverallScore float64                    `json:"overall_score"`
	Extra        map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes overall_score and keeps every other field raw.
func (q *QualityReview) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	raw, ok := fields["overall_score"]
	if !ok {
		return fmt.Errorf("quality review: missing overall_score")
	}
	if err := json.Unmarshal(raw, &q.OverallScore); err != nil {
		return fmt.Errorf("quality review: overall_score: %w", err)
	}
	delete(fields, "overall_score")

	q.Extra = nil
	if len(fields) > 0 {
		q.Extra = fields
	}
	return nil
}

// MarshalJSON writes overall_score first, then the extra fields in key order.
func (q QualityReview) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	score, err := json.Marshal(q.OverallScore)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"overall_score":`)
	buf.Write(score)

	keys := make([]string, 0, len(q.Extra))
	for k := range q.Extra {
		if k != "overall_score" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(q.Extra[k])
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PipelineResult is the sole output of a generation run
type PipelineResult struct {
	Email           EmailDraft      `json:"email"`
	Memo            MemoDraft       `json:"memo"`
	QualityScore    float64         `json:"quality_score"`
	ContextAnalysis ContextAnalysis `json:"context_analysis"`
	Strategy        Strategy        `json:"strategy"`
	QualityAnalysis QualityReview   `json:"quality_analysis"`
}

// GenerateInput is the request shape accepted by the HTTP API
type GenerateInput struct {
	JobDescription     string      `json:"jobDescription"`
	CompanyDescription string      `json:"companyDescription"`
	Resume             *ResumeData `json:"resume,omitempty"`
}

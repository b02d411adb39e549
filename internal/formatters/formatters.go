package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"applyforge/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "PipelineResult", &ResultTextFormatter{})
	registry.RegisterFormatter("markdown", "PipelineResult", &ResultMarkdownFormatter{})
	registry.RegisterFormatter("text", "ResumeData", &ResumeTextFormatter{})
	registry.RegisterFormatter("markdown", "ResumeData", &ResumeMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	data = deref(data)
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in sorted order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func deref(data any) any {
	switch v := data.(type) {
	case *types.PipelineResult:
		if v != nil {
			return *v
		}
	case *types.ResumeData:
		if v != nil {
			return *v
		}
	}
	return data
}

func getDataType(data any) string {
	switch data.(type) {
	case types.PipelineResult:
		return "PipelineResult"
	case types.ResumeData:
		return "ResumeData"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ResultTextFormatter renders a pipeline result as plain text
type ResultTextFormatter struct{}

func (rtf *ResultTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.PipelineResult)
	if !ok {
		return "", fmt.Errorf("expected PipelineResult, got %T", data)
	}

	var output strings.Builder

	fmt.Fprintf(&output, "=== APPLICATION EMAIL ===\n\n")
	fmt.Fprintf(&output, "Subject: %s\n\n", result.Email.SubjectLine)
	output.WriteString(result.Email.Greeting)
	output.WriteString("\n\n")
	for _, paragraph := range result.Email.BodyParagraphs {
		output.WriteString(paragraph)
		output.WriteString("\n\n")
	}
	output.WriteString(result.Email.Closing)
	output.WriteString("\n")
	output.WriteString(result.Email.Signature)
	output.WriteString("\n")
	if result.Email.FollowUpNote != "" {
		fmt.Fprintf(&output, "\nFollow-up: %s\n", result.Email.FollowUpNote)
	}

	fmt.Fprintf(&output, "\n=== %s ===\n", strings.ToUpper(orDefault(result.Memo.Title, "STRATEGY MEMO")))
	if author := result.Memo.AuthorInfo.Name; author != "" {
		fmt.Fprintf(&output, "Prepared by: %s\n", author)
	}
	output.WriteString("\n")
	for _, section := range result.Memo.Sections {
		fmt.Fprintf(&output, "%s:\n%s\n\n", section.Title, section.Content)
	}

	output.WriteString("=== STRATEGY ===\n")
	output.WriteString(result.Strategy.Approach)
	output.WriteString("\n")
	writeList(&output, "Key Points:", result.Strategy.KeyPoints, "- ")

	output.WriteString("\n=== CONTEXT ANALYSIS ===\n")
	writeList(&output, "Job Requirements:", result.ContextAnalysis.JobRequirements, "- ")
	writeList(&output, "Company Culture:", result.ContextAnalysis.CompanyCulture, "- ")
	writeList(&output, "Matched Skills:", result.ContextAnalysis.KeySkillsMatched, "- ")

	output.WriteString("\n=== QUALITY REVIEW ===\n")
	fmt.Fprintf(&output, "Overall Score: %s/100\n", formatScore(result.QualityScore))
	for _, key := range sortedKeys(result.QualityAnalysis.Extra) {
		fmt.Fprintf(&output, "%s: %s\n", key, string(result.QualityAnalysis.Extra[key]))
	}

	return output.String(), nil
}

func (rtf *ResultTextFormatter) SupportedType() string {
	return "PipelineResult"
}

// ResultMarkdownFormatter renders a pipeline result as markdown
type ResultMarkdownFormatter struct{}

func (rmf *ResultMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.PipelineResult)
	if !ok {
		return "", fmt.Errorf("expected PipelineResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Application Email\n\n")
	fmt.Fprintf(&output, "**Subject:** %s\n\n", result.Email.SubjectLine)
	output.WriteString(result.Email.Greeting)
	output.WriteString("\n\n")
	for _, paragraph := range result.Email.BodyParagraphs {
		output.WriteString(paragraph)
		output.WriteString("\n\n")
	}
	fmt.Fprintf(&output, "%s  \n%s\n\n", result.Email.Closing, result.Email.Signature)
	if result.Email.FollowUpNote != "" {
		fmt.Fprintf(&output, "> **Follow-up:** %s\n\n", result.Email.FollowUpNote)
	}

	fmt.Fprintf(&output, "# %s\n\n", orDefault(result.Memo.Title, "Strategy Memo"))
	if author := result.Memo.AuthorInfo.Name; author != "" {
		fmt.Fprintf(&output, "*Prepared by %s*\n\n", author)
	}
	for _, section := range result.Memo.Sections {
		fmt.Fprintf(&output, "## %s\n\n%s\n\n", section.Title, section.Content)
	}

	output.WriteString("# Strategy\n\n")
	output.WriteString(result.Strategy.Approach)
	output.WriteString("\n\n")
	writeList(&output, "### Key Points", result.Strategy.KeyPoints, "- ")

	output.WriteString("\n# Context Analysis\n\n")
	writeList(&output, "### Job Requirements", result.ContextAnalysis.JobRequirements, "- ")
	writeList(&output, "### Company Culture", result.ContextAnalysis.CompanyCulture, "- ")
	writeList(&output, "### Matched Skills", result.ContextAnalysis.KeySkillsMatched, "- ")

	output.WriteString("\n# Quality Review\n\n")
	fmt.Fprintf(&output, "**Overall Score:** %s/100\n", formatScore(result.QualityScore))
	if len(result.QualityAnalysis.Extra) > 0 {
		output.WriteString("\n| Field | Value |\n|---|---|\n")
		for _, key := range sortedKeys(result.QualityAnalysis.Extra) {
			fmt.Fprintf(&output, "| %s | `%s` |\n", key, string(result.QualityAnalysis.Extra[key]))
		}
	}

	return output.String(), nil
}

func (rmf *ResultMarkdownFormatter) SupportedType() string {
	return "PipelineResult"
}

// ResumeTextFormatter renders a structured résumé as plain text
type ResumeTextFormatter struct{}

func (rtf *ResumeTextFormatter) Format(data any) (string, error) {
	resume, ok := data.(types.ResumeData)
	if !ok {
		return "", fmt.Errorf("expected ResumeData, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== CONTACT ===\n")
	fmt.Fprintf(&output, "Name: %s\nEmail: %s\nPhone: %s\n\n",
		resume.Contact.Name, resume.Contact.Email, resume.Contact.Phone)

	output.WriteString("=== EXPERIENCE ===\n")
	for _, exp := range resume.Experience {
		fmt.Fprintf(&output, "%s at %s (%s)\n", exp.Title, exp.Company, exp.Duration)
		for _, highlight := range exp.Highlights {
			fmt.Fprintf(&output, "  - %s\n", highlight)
		}
	}

	output.WriteString("\n=== EDUCATION ===\n")
	for _, edu := range resume.Education {
		fmt.Fprintf(&output, "%s, %s (%s)\n", edu.Degree, edu.School, edu.Year)
	}

	output.WriteString("\n=== SKILLS ===\n")
	output.WriteString(strings.Join(resume.Skills, ", "))
	output.WriteString("\n")

	return output.String(), nil
}

func (rtf *ResumeTextFormatter) SupportedType() string {
	return "ResumeData"
}

// ResumeMarkdownFormatter renders a structured résumé as markdown
type ResumeMarkdownFormatter struct{}

func (rmf *ResumeMarkdownFormatter) Format(data any) (string, error) {
	resume, ok := data.(types.ResumeData)
	if !ok {
		return "", fmt.Errorf("expected ResumeData, got %T", data)
	}

	var output strings.Builder

	fmt.Fprintf(&output, "# %s\n\n", orDefault(resume.Contact.Name, "Resume"))
	var contact []string
	for _, v := range []string{resume.Contact.Email, resume.Contact.Phone} {
		if v != "" {
			contact = append(contact, v)
		}
	}
	if len(contact) > 0 {
		output.WriteString(strings.Join(contact, " | "))
		output.WriteString("\n\n")
	}

	output.WriteString("## Experience\n\n")
	for _, exp := range resume.Experience {
		fmt.Fprintf(&output, "### %s, %s\n*%s*\n\n", exp.Title, exp.Company, exp.Duration)
		for _, highlight := range exp.Highlights {
			fmt.Fprintf(&output, "- %s\n", highlight)
		}
		if len(exp.Highlights) > 0 {
			output.WriteString("\n")
		}
	}

	output.WriteString("## Education\n\n")
	for _, edu := range resume.Education {
		fmt.Fprintf(&output, "- **%s**, %s (%s)\n", edu.Degree, edu.School, edu.Year)
	}

	output.WriteString("\n## Skills\n\n")
	output.WriteString(strings.Join(resume.Skills, ", "))
	output.WriteString("\n")

	return output.String(), nil
}

func (rmf *ResumeMarkdownFormatter) SupportedType() string {
	return "ResumeData"
}

func writeList(output *strings.Builder, heading string, items []string, bullet string) {
	if len(items) == 0 {
		return
	}
	output.WriteString(heading)
	output.WriteString("\n")
	for _, item := range items {
		output.WriteString(bullet)
		output.WriteString(item)
		output.WriteString("\n")
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// formatScore drops the fraction for whole scores so 92 prints as "92"
func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return fmt.Sprintf("%d", int64(score))
	}
	return fmt.Sprintf("%.1f", score)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()

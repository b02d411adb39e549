package pipeline

import (
	"applyforge/internal/ai"
	"applyforge/internal/schema"
	"applyforge/internal/types"
)

// ContextInput feeds the context stage
type ContextInput struct {
	JobDescription     string
	CompanyDescription string
	Resume             *types.ResumeData
}

// StrategyInput feeds the strategy stage
type StrategyInput struct {
	Context types.ContextAnalysis
	Resume  *types.ResumeData
}

// ContentInput feeds the content stage
type ContentInput struct {
	Context  types.ContextAnalysis
	Strategy types.Strategy
	Resume   *types.ResumeData
}

// QAInput feeds the qa stage
type QAInput struct {
	Context  types.ContextAnalysis
	Strategy types.Strategy
	Content  types.GeneratedContent
}

var (
	contextSchema  = schema.MustCompile(StageContext, schema.ContextAnalysis)
	strategySchema = schema.MustCompile(StageStrategy, schema.Strategy)
	contentSchema  = schema.MustCompile(StageContent, schema.GeneratedContent)
	qaSchema       = schema.MustCompile(StageQA, schema.QualityReview)

	contextResponse  = schema.MustProvider(schema.ContextAnalysis)
	strategyResponse = schema.MustProvider(schema.Strategy)
	contentResponse  = schema.MustProvider(schema.GeneratedContent)
)

func renderContext(in ContextInput) (string, error) {
	p := &payloadBuilder{}
	return p.text("Job Description", in.JobDescription).
		text("Company Description", in.CompanyDescription).
		structured("Candidate Resume Context", in.Resume).
		instructions(
			"Analyze this information and provide:",
			"1. Key job requirements",
			"2. Company culture insights",
			"3. Matching skills from the resume",
		).build()
}

func renderStrategy(in StrategyInput) (string, error) {
	p := &payloadBuilder{}
	return p.structured("Context Analysis", in.Context).
		structured("Resume Context", in.Resume).
		instructions(
			"Develop a strategic approach that:",
			"1. Aligns the candidate's experience with the job requirements",
			"2. Emphasizes relevant achievements",
			"3. Addresses company culture fit",
			"4. Provides specific talking points",
		).build()
}

func renderContent(in ContentInput) (string, error) {
	p := &payloadBuilder{}
	return p.structured("Context Analysis", in.Context).
		structured("Strategy", in.Strategy).
		structured("Resume Context", in.Resume).
		instructions(
			"Generate:",
			"1. A compelling application email",
			"2. A detailed application memo",
			"3. A follow-up suggestion",
			"",
			"Ensure all content aligns with the provided strategy and context analysis.",
		).build()
}

func renderQA(in QAInput) (string, error) {
	p := &payloadBuilder{}
	return p.structured("Context Analysis", in.Context).
		structured("Strategy", in.Strategy).
		structured("Generated Content", in.Content).
		instructions(
			"Review and provide:",
			"1. Overall quality score",
			"2. Specific scores for email and memo",
			"3. Alignment with strategy",
			"4. Improvement suggestions",
			"5. Tone and professionalism assessment",
		).build()
}

// NewContextStage creates the context analysis stage
func NewContextStage(client ai.Client, directive string) *Stage[ContextInput, types.ContextAnalysis] {
	return NewStage[ContextInput, types.ContextAnalysis](StageContext, directive, renderContext, contextSchema, contextResponse, client)
}

// NewStrategyStage creates the strategy development stage
func NewStrategyStage(client ai.Client, directive string) *Stage[StrategyInput, types.Strategy] {
	return NewStage[StrategyInput, types.Strategy](StageStrategy, directive, renderStrategy, strategySchema, strategyResponse, client)
}

// NewContentStage creates the content generation stage
func NewContentStage(client ai.Client, directive string) *Stage[ContentInput, types.GeneratedContent] {
	return NewStage[ContentInput, types.GeneratedContent](StageContent, directive, renderContent, contentSchema, contentResponse, client)
}

// NewQAStage creates the quality review stage. The review is open-shaped, so
// the provider gets no response schema that would strip extra fields.
func NewQAStage(client ai.Client, directive string) *Stage[QAInput, types.QualityReview] {
	return NewStage[QAInput, types.QualityReview](StageQA, directive, renderQA, qaSchema, nil, client)
}

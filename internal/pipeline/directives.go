package pipeline

import "applyforge/internal/config"

// Stage names, also used as inference operation names and directive keys
const (
	StageContext  = config.DirectiveContext
	StageStrategy = config.DirectiveStrategy
	StageContent  = config.DirectiveContent
	StageQA       = config.DirectiveQA
)

// DefaultDirectives are the built-in stage directives. Each names the role
// and the exact JSON shape the stage validates against.
var DefaultDirectives = map[string]string{
	StageContext: `You are a Context Analysis Agent specialized in analyzing job descriptions and company information.
Your task is to:
1. Extract key requirements and qualifications from the job description
2. Identify company culture and values
3. Match candidate skills with job requirements

Respond with a single JSON object of exactly this shape:
{
  "job_requirements": ["string"],
  "company_culture": ["string"],
  "key_skills_matched": ["string"]
}`,

	StageStrategy: `You are a Strategy Development Agent specialized in creating effective job application strategies.
Your task is to:
1. Develop a tailored approach for the application
2. Identify the key points to emphasize
3. Ground every point in the candidate's actual experience

Respond with a single JSON object of exactly this shape:
{
  "approach": "string",
  "key_points": ["string"]
}`,

	StageContent: `You are a Content Generation Agent specialized in creating compelling job application materials.
Your task is to write a professional application email and a detailed application memo
that follow the provided strategy and context analysis. Use only facts present in the
candidate's resume.

Respond with a single JSON object of exactly this shape:
{
  "email": {
    "subject_line": "string",
    "greeting": "string",
    "body_paragraphs": ["string"],
    "closing": "string",
    "signature": "string",
    "follow_up_note": "string"
  },
  "memo": {
    "title": "string",
    "author_info": {"name": "string", "email": "string", "phone": "string"},
    "sections": [{"title": "string", "content": "string"}]
  }
}`,

	StageQA: `You are a Quality Assurance Agent specialized in reviewing job application materials.
Your task is to:
1. Review the materials for quality and effectiveness
2. Score the email and the memo
3. Assess alignment with the strategy, tone and professionalism
4. Provide specific improvement suggestions

Respond with a single JSON object. It must contain "overall_score", a number from 0 to 100.
You may add fields such as "email_score", "memo_score", "alignment_with_strategy",
"suggestions" and "tone_assessment".`,
}

// resolveDirective returns the configured override for stage, falling back
// to the built-in default.
func resolveDirective(overrides config.DirectiveConfig, stage string) string {
	if override := overrides.Override(stage); override != "" {
		return override
	}
	return DefaultDirectives[stage]
}

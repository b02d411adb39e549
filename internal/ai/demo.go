package ai

import (
	"context"
	"fmt"
	"sync/atomic"

	"applyforge/internal/errors"
)

// demoResponses are the canned bodies returned in demo mode, keyed by operation
var demoResponses = map[string]string{
	"context": `{
		"job_requirements": ["Software development", "Team leadership", "System optimization"],
		"company_culture": ["Innovative", "Collaborative", "Growth-oriented"],
		"key_skills_matched": ["Python", "FastAPI", "React", "AWS"]
	}`,
	"strategy": `{
		"approach": "Focus on technical expertise and leadership experience",
		"key_points": ["Team leadership", "Performance optimization", "Technical stack alignment"]
	}`,
	"content": `{
		"email": {
			"subject_line": "Application for Software Engineer Position",
			"greeting": "Dear Hiring Manager,",
			"body_paragraphs": [
				"I am writing to express my strong interest in the Software Engineer position at your company. With my background in full-stack development and team leadership, I am confident in my ability to contribute to your innovative team.",
				"In my current role as Senior Software Engineer at Tech Corp, I have successfully led a team of 5 engineers and improved system performance by 40%. My experience with Python, FastAPI, and React aligns perfectly with your technical requirements.",
				"I am particularly drawn to your company's commitment to innovation and collaborative culture. I believe my technical expertise and leadership experience would make me a valuable addition to your team."
			],
			"closing": "Thank you for considering my application. I look forward to discussing how I can contribute to your team.",
			"signature": "Best regards,\nJohn Doe",
			"follow_up_note": "Follow up in one week if no response"
		},
		"memo": {
			"title": "Application Strategy Memo",
			"author_info": {"name": "John Doe", "email": "john.doe@email.com", "phone": "(555) 123-4567"},
			"sections": [
				{"title": "Background Research", "content": "The company is a leader in innovative technology solutions with a strong focus on collaboration and growth."},
				{"title": "Key Qualifications", "content": "Led a team of 5 engineers, improved system performance by 40%, and built expertise in Python, FastAPI, React and AWS."},
				{"title": "Strategy", "content": "Emphasize technical leadership and performance optimization experience while highlighting alignment with the company's collaborative culture."}
			]
		}
	}`,
	"qa": `{
		"overall_score": 95,
		"email_score": 95,
		"memo_score": 94,
		"alignment_with_strategy": "Strong alignment with the leadership and optimization focus",
		"suggestions": ["Quantify the impact of recent projects"],
		"tone_assessment": "Professional and confident"
	}`,
	"resume": `{
		"experience": [
			{
				"title": "Senior Software Engineer",
				"company": "Tech Corp",
				"duration": "2020-Present",
				"highlights": ["Led team of 5 engineers", "Improved system performance by 40%"]
			}
		],
		"skills": ["Python", "FastAPI", "React", "AWS"],
		"education": [
			{"degree": "BS Computer Science", "school": "University of Technology", "year": "2018"}
		],
		"contact": {"name": "John Doe", "email": "john.doe@email.com", "phone": "(555) 123-4567"}
	}`,
}

// DemoClient returns canned responses without contacting a provider. It is
// used for offline runs and demos.
type DemoClient struct {
	logger *errors.Logger
	calls  atomic.Int64
}

var _ Client = (*DemoClient)(nil)

// NewDemoClient creates a demo client
func NewDemoClient(logger *errors.Logger) *DemoClient {
	return &DemoClient{logger: logger}
}

// Invoke implements Client
func (d *DemoClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, inferenceFailure(ctx, req.Operation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, inferenceFailure(ctx, req.Operation, err)
	}

	canned, ok := demoResponses[req.Operation]
	if !ok {
		return nil, inferenceFailure(ctx, req.Operation,
			fmt.Errorf("demo mode has no response for operation %q", req.Operation))
	}

	body, err := DecodeObject(canned)
	if err != nil {
		return nil, inferenceFailure(ctx, req.Operation, err)
	}

	d.calls.Add(1)
	if d.logger != nil {
		d.logger.Debug("Returning demo response", "operation", req.Operation)
	}
	return &Response{Body: body}, nil
}

// ModelInfo implements Client
func (d *DemoClient) ModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: "demo", Provider: "demo", DisplayName: "Canned demo responses", Available: true}
}

// Stats implements Client
func (d *DemoClient) Stats() map[string]any {
	return map[string]any{
		"provider": "demo",
		"calls":    d.calls.Load(),
		"healthy":  true,
	}
}

// Close implements Client
func (d *DemoClient) Close() error { return nil }

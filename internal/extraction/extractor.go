// Package extraction turns an uploaded résumé document into ResumeData: a
// read phase producing plain text, then a parse phase using the shared
// inference client.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/schema"
	"applyforge/internal/types"
)

// Operation is the inference operation name used by the parse phase
const Operation = config.DirectiveResume

const payloadPrefix = "Parse this resume into structured JSON format:\n\n"

// DefaultDirective is the built-in résumé parsing directive
const DefaultDirective = `You are a Resume Parser specialized in converting resume text into structured JSON format.
Your task is to extract:
1. Work experience (with company, title, duration, and highlights)
2. Skills
3. Education
4. Contact information

Use empty strings or empty arrays for anything the resume does not state. Respond with a single
JSON object matching this structure:
{
  "experience": [
    {
      "title": "string",
      "company": "string",
      "duration": "string",
      "highlights": ["string"]
    }
  ],
  "skills": ["string"],
  "education": [
    {
      "degree": "string",
      "school": "string",
      "year": "string"
    }
  ],
  "contact": {
    "name": "string",
    "email": "string",
    "phone": "string"
  }
}`

var (
	resumeSchema   = schema.MustCompile(Operation, schema.ResumeData)
	resumeResponse = schema.MustProvider(schema.ResumeData)
)

// Extractor runs both extraction phases
type Extractor struct {
	client    ai.Client
	directive atomic.Pointer[string]
	logger    *errors.Logger
}

// NewExtractor creates an Extractor. An empty directive selects the default.
func NewExtractor(client ai.Client, directive string, logger *errors.Logger) *Extractor {
	e := &Extractor{client: client, logger: logger}
	e.SetDirective(directive)
	return e
}

// SetDirective replaces the parsing directive for later calls. A blank
// directive restores the default.
func (e *Extractor) SetDirective(directive string) {
	directive = strings.TrimSpace(directive)
	if directive == "" {
		directive = DefaultDirective
	}
	e.directive.Store(&directive)
}

// Directive returns the parsing directive in use
func (e *Extractor) Directive() string {
	return *e.directive.Load()
}

// Extract reads raw as mimeType and structures the text. Failures are
// *errors.ExtractionFailure tagged with the failing phase.
func (e *Extractor) Extract(ctx context.Context, raw []byte, mimeType string) (*types.ResumeData, error) {
	ctx, span := otel.Tracer("applyforge.extraction").Start(ctx, "resume.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.mime_type", mimeType),
		attribute.Int("document.size", len(raw)),
	)

	fail := func(phase errors.ExtractionPhase, cause error) (*types.ResumeData, error) {
		failure := &errors.ExtractionFailure{Phase: phase, Cause: cause}
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		e.logger.LogError(failure, "Resume extraction failed", "mime_type", mimeType)
		return nil, failure
	}

	text, err := ReadText(raw, mimeType)
	if err != nil {
		return fail(errors.PhaseRead, err)
	}
	span.SetAttributes(attribute.Int("document.text_length", len(text)))

	resume, err := e.parse(ctx, text)
	if err != nil {
		return fail(errors.PhaseParse, err)
	}

	e.logger.Info("Resume extracted",
		"mime_type", mimeType,
		"experience_entries", len(resume.Experience),
		"skills", len(resume.Skills))
	return resume, nil
}

func (e *Extractor) parse(ctx context.Context, text string) (*types.ResumeData, error) {
	resp, err := e.client.Invoke(ctx, ai.Request{
		Operation: Operation,
		Directive: e.Directive(),
		Payload:   payloadPrefix + text,

		ResponseSchema: resumeResponse,
	})
	if err != nil {
		return nil, err
	}

	if err := resumeSchema.Validate(resp.Body); err != nil {
		return nil, err
	}

	var resume types.ResumeData
	if err := json.Unmarshal(resp.Body, &resume); err != nil {
		return nil, &errors.SchemaViolation{
			Stage:      Operation,
			Violations: []string{fmt.Sprintf("body does not decode: %v", err)},
		}
	}
	return &resume, nil
}

// Package pipeline runs the four-stage generation pipeline. Each stage is one
// inference call whose validated output feeds the next stage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"applyforge/internal/ai"
	"applyforge/internal/errors"
	"applyforge/internal/schema"
)

// Stage is one generation step: render the input, invoke the model,
// validate the body and decode it. It holds no per-run state.
type Stage[TIn, TOut any] struct {
	name      string
	directive atomic.Pointer[string]
	render    func(TIn) (string, error)
	validator *schema.Validator
	response  *genai.Schema
	client    ai.Client
}

// NewStage creates a stage. response, when set, is sent to the provider as
// the output shape; validator runs on every body regardless.
func NewStage[TIn, TOut any](name, directive string, render func(TIn) (string, error), validator *schema.Validator, response *genai.Schema, client ai.Client) *Stage[TIn, TOut] {
	s := &Stage[TIn, TOut]{
		name:      name,
		render:    render,
		validator: validator,
		response:  response,
		client:    client,
	}
	s.SetDirective(directive)
	return s
}

// Name returns the stage name
func (s *Stage[TIn, TOut]) Name() string { return s.name }

// Directive returns the directive sent with every call
func (s *Stage[TIn, TOut]) Directive() string { return *s.directive.Load() }

// SetDirective replaces the directive for calls that start afterwards.
// Runs already past this stage are unaffected.
func (s *Stage[TIn, TOut]) SetDirective(directive string) {
	s.directive.Store(&directive)
}

// Run executes the stage once. Failures are *errors.StageFailure wrapping
// either an InferenceFailure or a SchemaViolation.
func (s *Stage[TIn, TOut]) Run(ctx context.Context, in TIn) (TOut, error) {
	var out TOut

	ctx, span := otel.Tracer("applyforge.pipeline").Start(ctx, "stage."+s.name)
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.stage", s.name))

	fail := func(cause error) (TOut, error) {
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
		return out, &errors.StageFailure{Stage: s.name, Cause: cause}
	}

	payload, err := s.render(in)
	if err != nil {
		// A payload that cannot be built never reaches the provider
		return fail(&errors.InferenceFailure{Operation: s.name, Cause: err})
	}

	resp, err := s.client.Invoke(ctx, ai.Request{
		Operation: s.name,
		Directive: s.Directive(),
		Payload:   payload,

		ResponseSchema: s.response,
	})
	if err != nil {
		return fail(err)
	}

	if err := s.validator.Validate(resp.Body); err != nil {
		return fail(err)
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return fail(&errors.SchemaViolation{
			Stage:      s.name,
			Violations: []string{fmt.Sprintf("body does not decode: %v", err)},
		})
	}

	return out, nil
}

// payloadBuilder assembles a user payload from titled sections, with
// structured values rendered as indented JSON.
type payloadBuilder struct {
	b   strings.Builder
	err error
}

func (p *payloadBuilder) text(title, value string) *payloadBuilder {
	p.section(title, value)
	return p
}

func (p *payloadBuilder) structured(title string, value any) *payloadBuilder {
	if p.err != nil {
		return p
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		p.err = fmt.Errorf("render %s: %w", strings.ToLower(title), err)
		return p
	}
	p.section(title, string(data))
	return p
}

func (p *payloadBuilder) instructions(lines ...string) *payloadBuilder {
	if p.b.Len() > 0 {
		p.b.WriteString("\n\n")
	}
	for i, line := range lines {
		if i > 0 {
			p.b.WriteByte('\n')
		}
		p.b.WriteString(line)
	}
	return p
}

func (p *payloadBuilder) section(title, body string) {
	if p.b.Len() > 0 {
		p.b.WriteString("\n\n")
	}
	p.b.WriteString(title)
	p.b.WriteString(":\n")
	p.b.WriteString(body)
}

func (p *payloadBuilder) build() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.b.String(), nil
}

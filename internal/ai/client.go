package ai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"applyforge/internal/errors"
)

// Client is the single inference client shared by every pipeline stage and
// by résumé extraction. Implementations hold no per-call state and are safe
// for concurrent use.
type Client interface {
	// Invoke sends one directive/payload pair and returns a JSON object body.
	// Every failure is an *errors.InferenceFailure.
	Invoke(ctx context.Context, req Request) (*Response, error)
	ModelInfo(ctx context.Context) *ModelInfo
	Stats() map[string]any
	Close() error
}

// Request is one structured exchange with the provider
type Request struct {
	Operation string // stage or extraction step, used for logs, spans and metrics
	Directive string // system instruction: role and required output shape
	Payload   string // user content

	// ResponseSchema optionally constrains the provider's output shape.
	// Bodies are still validated by the caller after the call.
	ResponseSchema *genai.Schema
}

// Response carries the provider's body, guaranteed to be a JSON object
type Response struct {
	Body  json.RawMessage
	Usage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

var (
	ErrEmptyDirective = stderrors.New("directive must not be empty")
	ErrEmptyPayload   = stderrors.New("payload must not be empty")
	ErrEmptyResponse  = stderrors.New("provider returned an empty response")
	ErrNotObject      = stderrors.New("response is not a JSON object")
)

func (r Request) validate() error {
	if strings.TrimSpace(r.Directive) == "" {
		return ErrEmptyDirective
	}
	if strings.TrimSpace(r.Payload) == "" {
		return ErrEmptyPayload
	}
	return nil
}

// inferenceFailure wraps err for operation. When the call context has ended,
// its error joins the chain so deadline and cancellation stay detectable
// even if the transport reported something else.
func inferenceFailure(callCtx context.Context, operation string, err error) *errors.InferenceFailure {
	if ctxErr := callCtx.Err(); ctxErr != nil && !stderrors.Is(err, ctxErr) {
		err = stderrors.Join(err, ctxErr)
	}
	return &errors.InferenceFailure{Operation: operation, Cause: err}
}

// CleanJSON strips a surrounding markdown code fence from a model reply
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}

// DecodeObject cleans text and requires it to be exactly one JSON object
func DecodeObject(text string) (json.RawMessage, error) {
	clean := CleanJSON(text)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	var decoded any
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("response has trailing data after the JSON value")
	}
	if _, ok := decoded.(map[string]any); !ok {
		return nil, fmt.Errorf("%w (got %T)", ErrNotObject, decoded)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(clean)); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return json.RawMessage(compact.Bytes()), nil
}

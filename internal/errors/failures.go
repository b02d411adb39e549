package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// InferenceFailure is any failed exchange with the inference provider:
// transport or provider errors, timeouts, and bodies that are not a JSON
// object. Cause is kept for diagnostics only.
type InferenceFailure struct {
	Operation string
	Cause     error
}

func (e *InferenceFailure) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("inference failed: %v", e.Cause)
	}
	return fmt.Sprintf("inference failed for %s: %v", e.Operation, e.Cause)
}

func (e *InferenceFailure) Unwrap() error { return e.Cause }

// Timeout reports whether the call was cut off by its deadline.
func (e *InferenceFailure) Timeout() bool {
	return stderrors.Is(e.Cause, context.DeadlineExceeded)
}

// SchemaViolation means the response parsed as JSON but did not have the
// shape the stage requires.
type SchemaViolation struct {
	Stage      string
	Missing    []string
	Violations []string
}

func (e *SchemaViolation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema violation in %s response", e.Stage)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required fields [%s]", strings.Join(e.Missing, ", "))
	}
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, "; %s", strings.Join(e.Violations, "; "))
	}
	return b.String()
}

// StageFailure wraps an InferenceFailure or SchemaViolation with the name of
// the stage that produced it.
type StageFailure struct {
	Stage string
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error { return e.Cause }

// PipelineFailure is what a pipeline run returns when one of its stages
// fails. Position is 1-based.
type PipelineFailure struct {
	Stage    string
	Position int
	Cause    error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("pipeline failed at stage %d (%s): %v", e.Position, e.Stage, e.Cause)
}

func (e *PipelineFailure) Unwrap() error { return e.Cause }

// ExtractionPhase identifies which half of résumé extraction failed.
type ExtractionPhase string

const (
	PhaseRead  ExtractionPhase = "read"
	PhaseParse ExtractionPhase = "parse"
)

// ExtractionFailure separates "bad file" (read) from "parsing service
// problem" (parse).
type ExtractionFailure struct {
	Phase ExtractionPhase
	Cause error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("resume extraction failed during %s: %v", e.Phase, e.Cause)
}

func (e *ExtractionFailure) Unwrap() error { return e.Cause }

// IsInferenceFailure reports whether an InferenceFailure is anywhere in err's chain.
func IsInferenceFailure(err error) bool {
	var target *InferenceFailure
	return stderrors.As(err, &target)
}

// IsSchemaViolation reports whether a SchemaViolation is anywhere in err's chain.
func IsSchemaViolation(err error) bool {
	var target *SchemaViolation
	return stderrors.As(err, &target)
}

// IsTimeout reports whether err is an inference failure caused by a deadline.
func IsTimeout(err error) bool {
	var target *InferenceFailure
	return stderrors.As(err, &target) && target.Timeout()
}

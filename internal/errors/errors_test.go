package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestFailureChainKeepsKindAndPosition(t *testing.T) {
	inference := &InferenceFailure{Operation: "strategy", Cause: fmt.Errorf("connection reset")}
	stage := &StageFailure{Stage: "strategy", Cause: inference}
	pipeline := &PipelineFailure{Stage: "strategy", Position: 2, Cause: stage}

	var gotPipeline *PipelineFailure
	if !stderrors.As(pipeline, &gotPipeline) {
		t.Fatal("Expected PipelineFailure to match errors.As")
	}
	if gotPipeline.Stage != "strategy" || gotPipeline.Position != 2 {
		t.Errorf("Expected stage strategy at position 2, got %s at %d", gotPipeline.Stage, gotPipeline.Position)
	}

	var gotStage *StageFailure
	if !stderrors.As(pipeline, &gotStage) {
		t.Fatal("Expected StageFailure in chain")
	}
	if !IsInferenceFailure(pipeline) {
		t.Error("Expected InferenceFailure in chain")
	}
	if IsSchemaViolation(pipeline) {
		t.Error("Did not expect SchemaViolation in chain")
	}
}

func TestInferenceFailureTimeout(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"transport", fmt.Errorf("dial tcp: refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StageFailure{Stage: "qa", Cause: &InferenceFailure{Cause: tt.cause}}
			if got := IsTimeout(err); got != tt.want {
				t.Errorf("Expected IsTimeout=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestSchemaViolationMessage(t *testing.T) {
	err := &SchemaViolation{Stage: "context", Missing: []string{"key_skills_matched"}}
	if !strings.Contains(err.Error(), "key_skills_matched") {
		t.Errorf("Expected message to name the missing field, got %q", err.Error())
	}
}

func TestExtractionFailurePhase(t *testing.T) {
	err := fmt.Errorf("parse resume: %w", &ExtractionFailure{Phase: PhaseRead, Cause: fmt.Errorf("corrupt pdf")})

	var target *ExtractionFailure
	if !stderrors.As(err, &target) {
		t.Fatal("Expected ExtractionFailure in chain")
	}
	if target.Phase != PhaseRead {
		t.Errorf("Expected phase %q, got %q", PhaseRead, target.Phase)
	}
}

func TestLogErrorAddsStageAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)

	err := &PipelineFailure{
		Stage:    "context",
		Position: 1,
		Cause: &StageFailure{
			Stage: "context",
			Cause: &SchemaViolation{Stage: "context", Missing: []string{"key_skills_matched"}},
		},
	}
	logger.LogError(err, "Pipeline run failed", "run_id", "abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Failed to decode log record: %v", err)
	}
	if record["stage"] != "context" {
		t.Errorf("Expected stage attribute 'context', got %v", record["stage"])
	}
	if record["stage_position"] != float64(1) {
		t.Errorf("Expected stage_position 1, got %v", record["stage_position"])
	}
	if record["run_id"] != "abc" {
		t.Errorf("Expected run_id attribute, got %v", record["run_id"])
	}
	if _, ok := record["missing_fields"]; !ok {
		t.Error("Expected missing_fields attribute")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := New(level); err != nil {
			t.Errorf("Expected level %q to be accepted, got %v", level, err)
		}
	}
	if _, err := New("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestIsValidation(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewValidationError(ErrCodeInvalidRequest, "bad", nil))
	if !IsValidation(err) {
		t.Error("Expected wrapped validation error to be detected")
	}
	if IsValidation(NewIOError(ErrCodeFileNotFound, "missing", nil)) {
		t.Error("Did not expect IO error to count as validation")
	}
}

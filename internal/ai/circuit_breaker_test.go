package ai

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}
}

func TestBreakerConfiguration(t *testing.T) {
	cb := NewBreaker[string]("AI-Test", breakerConfig(), testLogger)
	if cb == nil {
		t.Fatal("Circuit breaker should not be nil")
	}

	stats := cb.Stats()
	if name, _ := stats["name"].(string); name != "AI-Test" {
		t.Errorf("Expected circuit breaker name 'AI-Test', got '%s'", name)
	}
	if state, _ := stats["state"].(string); state != "closed" {
		t.Errorf("Expected initial state 'closed', got '%s'", state)
	}
	if enabled, _ := stats["enabled"].(bool); !enabled {
		t.Error("Circuit breaker should be enabled")
	}
	if !cb.IsHealthy() {
		t.Error("Circuit breaker should be healthy initially")
	}
}

func TestBreakerDisabled(t *testing.T) {
	cfg := breakerConfig()
	cfg.Enabled = false

	cb := NewBreaker[string]("Disabled", cfg, testLogger)
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	// A nil breaker runs calls directly
	got, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Errorf("Expected pass-through result, got %q, %v", got, err)
	}
	if !cb.IsHealthy() {
		t.Error("Disabled breaker should report healthy")
	}
	if enabled, _ := cb.Stats()["enabled"].(bool); enabled {
		t.Error("Disabled breaker should report enabled=false")
	}
}

func TestBreakerTripsAfterFailures(t *testing.T) {
	cb := NewBreaker[string]("AI-Trip", breakerConfig(), testLogger)
	boom := stderrors.New("provider down")

	calls := 0
	for range 3 {
		_, _ = cb.Execute(func() (string, error) {
			calls++
			return "", boom
		})
	}

	if cb.IsHealthy() {
		t.Fatal("Expected breaker to be open after 3 failures")
	}

	_, err := cb.Execute(func() (string, error) {
		calls++
		return "ok", nil
	})
	if err == nil {
		t.Fatal("Expected open breaker to reject the call")
	}
	if calls != 3 {
		t.Errorf("Expected rejected call not to run, got %d calls", calls)
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb := NewBreaker[string]("AI-Cancel", breakerConfig(), testLogger)

	for range 5 {
		_, _ = cb.Execute(func() (string, error) { return "", context.Canceled })
	}

	if !cb.IsHealthy() {
		t.Error("Cancelled calls should not trip the breaker")
	}
}

func TestModelBreakerTripsLater(t *testing.T) {
	cb := NewModelBreaker[string]("AI-Model", breakerConfig(), testLogger)
	boom := stderrors.New("unavailable")

	for range 4 {
		_, _ = cb.Execute(func() (string, error) { return "", boom })
	}
	if !cb.IsHealthy() {
		t.Error("Model breaker should stay closed below 5 requests")
	}

	_, _ = cb.Execute(func() (string, error) { return "", boom })
	if cb.IsHealthy() {
		t.Error("Model breaker should open after 5 failed requests")
	}
}

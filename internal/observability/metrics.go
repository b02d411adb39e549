package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
)

// Metrics holds the application instruments. It satisfies service.Metrics.
type Metrics struct {
	cfg config.MetricsConfig

	aiRequests metric.Int64Counter
	aiErrors   metric.Int64Counter
	aiDuration metric.Float64Histogram
	aiTokens   metric.Int64Counter

	pipelineRuns     metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	stageDuration    metric.Float64Histogram
	stageFailures    metric.Int64Counter

	resumesParsed      metric.Int64Counter
	extractionDuration metric.Float64Histogram

	rateLimitHits metric.Int64Counter
}

// NewMetrics registers every instrument on meter
func NewMetrics(meter metric.Meter, cfg config.MetricsConfig) (*Metrics, error) {
	m := &Metrics{cfg: cfg}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.aiRequests, "applyforge_ai_requests_total", "Inference requests by operation", "{request}"},
		{&m.aiErrors, "applyforge_ai_errors_total", "Failed inference requests by operation and kind", "{error}"},
		{&m.aiTokens, "applyforge_ai_tokens_total", "Tokens consumed by inference requests", "{token}"},
		{&m.pipelineRuns, "applyforge_pipeline_runs_total", "Pipeline runs by outcome", "{run}"},
		{&m.stageFailures, "applyforge_stage_failures_total", "Failed stage executions by stage and kind", "{failure}"},
		{&m.resumesParsed, "applyforge_resumes_parsed_total", "Résumé extractions by outcome", "{resume}"},
		{&m.rateLimitHits, "applyforge_rate_limit_hits_total", "Requests rejected by the rate limiter", "{request}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.aiDuration, "applyforge_ai_duration_seconds", "Inference request latency"},
		{&m.pipelineDuration, "applyforge_pipeline_duration_seconds", "End-to-end pipeline latency"},
		{&m.stageDuration, "applyforge_stage_duration_seconds", "Stage latency"},
		{&m.extractionDuration, "applyforge_extraction_duration_seconds", "Résumé extraction latency"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", h.name, err)
		}
	}

	return m, nil
}

// RecordAIOperation records one inference call
func (m *Metrics) RecordAIOperation(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	opAttr := metric.WithAttributes(attribute.String("operation", operation))

	m.aiRequests.Add(ctx, 1, opAttr)
	m.aiDuration.Record(ctx, duration.Seconds(), opAttr)

	if err != nil {
		m.aiErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", failureKind(err)),
		))
		return
	}

	if m.cfg.TrackTokenUsage && usage != nil {
		for kind, count := range map[string]int64{
			"input":  usage.InputTokens,
			"output": usage.OutputTokens,
		} {
			if count > 0 {
				m.aiTokens.Add(ctx, count, metric.WithAttributes(
					attribute.String("operation", operation),
					attribute.String("type", kind),
				))
			}
		}
	}
}

// RecordStage records one stage execution
func (m *Metrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		m.stageFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", failureKind(err)),
		))
	}
}

// RecordRun records one pipeline run
func (m *Metrics) RecordRun(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome(err)))
	m.pipelineRuns.Add(ctx, 1, attrs)
	m.pipelineDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordExtraction records one résumé extraction
func (m *Metrics) RecordExtraction(ctx context.Context, duration time.Duration, err error) {
	phase := "none"
	var failure *errors.ExtractionFailure
	if stderrors.As(err, &failure) {
		phase = string(failure.Phase)
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome(err)),
		attribute.String("phase", phase),
	)
	m.resumesParsed.Add(ctx, 1, attrs)
	m.extractionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limitType string) {
	if !m.cfg.TrackRateLimits {
		return
	}
	m.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_type", limitType)))
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func failureKind(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsSchemaViolation(err):
		return "schema"
	case errors.IsInferenceFailure(err):
		return "inference"
	case errors.IsValidation(err):
		return "validation"
	default:
		return "other"
	}
}

package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

func newTestMetrics(t *testing.T, cfg config.MetricsConfig) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"), cfg)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordRunAndStages(t *testing.T) {
	m, reader := newTestMetrics(t, config.MetricsConfig{})
	ctx := context.Background()

	m.RecordStage(ctx, "context", 10*time.Millisecond, nil)
	m.RecordStage(ctx, "strategy", 10*time.Millisecond, &errors.StageFailure{
		Stage: "strategy",
		Cause: &errors.SchemaViolation{Stage: "strategy", Missing: []string{"approach"}},
	})
	m.RecordRun(ctx, 20*time.Millisecond, nil)
	m.RecordRun(ctx, 20*time.Millisecond, &errors.PipelineFailure{Stage: "strategy", Position: 2})

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["applyforge_pipeline_runs_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["applyforge_stage_failures_total"]))

	failures := got["applyforge_stage_failures_total"].Data.(metricdata.Sum[int64])
	kind, ok := failures.DataPoints[0].Attributes.Value("kind")
	require.True(t, ok)
	assert.Equal(t, "schema", kind.AsString())

	hist, ok := got["applyforge_stage_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestRecordExtractionPhase(t *testing.T) {
	m, reader := newTestMetrics(t, config.MetricsConfig{})
	ctx := context.Background()

	m.RecordExtraction(ctx, time.Millisecond, nil)
	m.RecordExtraction(ctx, time.Millisecond, &errors.ExtractionFailure{Phase: errors.PhaseRead})

	parsed := collect(t, reader)["applyforge_resumes_parsed_total"]
	assert.Equal(t, int64(2), sumOf(t, parsed))

	phases := map[string]bool{}
	for _, dp := range parsed.Data.(metricdata.Sum[int64]).DataPoints {
		phase, _ := dp.Attributes.Value("phase")
		phases[phase.AsString()] = true
	}
	assert.Equal(t, map[string]bool{"none": true, "read": true}, phases)
}

func TestTokenAndRateLimitTrackingAreGated(t *testing.T) {
	usage := &ai.TokenUsage{InputTokens: 120, OutputTokens: 30, TotalTokens: 150}

	tests := []struct {
		name       string
		cfg        config.MetricsConfig
		wantTokens int64
		wantHits   int64
	}{
		{"disabled", config.MetricsConfig{}, 0, 0},
		{"enabled", config.MetricsConfig{TrackTokenUsage: true, TrackRateLimits: true}, 150, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t, tt.cfg)
			ctx := context.Background()

			m.RecordAIOperation(ctx, "context", time.Millisecond, usage, nil)
			m.RecordRateLimitHit(ctx, "ip")

			got := collect(t, reader)
			assert.Equal(t, int64(1), sumOf(t, got["applyforge_ai_requests_total"]))
			if tt.wantTokens == 0 {
				assert.NotContains(t, got, "applyforge_ai_tokens_total")
			} else {
				assert.Equal(t, tt.wantTokens, sumOf(t, got["applyforge_ai_tokens_total"]))
			}
			if tt.wantHits == 0 {
				assert.NotContains(t, got, "applyforge_rate_limit_hits_total")
			} else {
				assert.Equal(t, tt.wantHits, sumOf(t, got["applyforge_rate_limit_hits_total"]))
			}
		})
	}
}

func TestInstrumentClient(t *testing.T) {
	m, reader := newTestMetrics(t, config.MetricsConfig{TrackTokenUsage: true})
	client := InstrumentClient(ai.NewDemoClient(testLogger), m)
	ctx := context.Background()

	resp, err := client.Invoke(ctx, ai.Request{Operation: "strategy", Directive: "d", Payload: "p"})
	require.NoError(t, err)
	assert.True(t, json.Valid(resp.Body))

	_, err = client.Invoke(ctx, ai.Request{Operation: "unknown", Directive: "d", Payload: "p"})
	require.Error(t, err)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["applyforge_ai_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["applyforge_ai_errors_total"]))

	plain := ai.NewDemoClient(testLogger)
	assert.Same(t, plain, InstrumentClient(plain, nil))
}

func TestDisabledManagerIsNoop(t *testing.T) {
	om, err := NewObservabilityManager(config.ObservabilityConfig{ServiceName: "applyforge"}, "1.0.0", testLogger)
	require.NoError(t, err)
	assert.False(t, om.Enabled())
	require.NotNil(t, om.Metrics())

	om.Metrics().RecordRun(context.Background(), time.Millisecond, nil)

	called := false
	handler := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)

	_, span := om.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestEnabledManagerWithoutExporters(t *testing.T) {
	om, err := NewObservabilityManager(config.ObservabilityConfig{
		Enabled:         true,
		ServiceName:     "applyforge",
		ServiceInstance: "test-1",
		SampleRate:      1.0,
	}, "1.0.0", testLogger)
	require.NoError(t, err)

	_, span := om.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestPrometheusExporterServesMetrics(t *testing.T) {
	reader, mux, err := SetupPrometheusExporter(config.PrometheusConfig{Endpoint: "/metrics"})
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"), config.MetricsConfig{})
	require.NoError(t, err)
	m.RecordRun(context.Background(), time.Millisecond, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "applyforge_pipeline_runs_total")
}

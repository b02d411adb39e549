package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/observability"
	"applyforge/internal/pipeline"
	"applyforge/internal/service"
	"applyforge/internal/store"
	"applyforge/internal/types"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

const oleMagic = "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1"

func newTestServer(t *testing.T, cfg ServerConfig, svc Service) *Server {
	t.Helper()
	om, err := observability.NewObservabilityManager(config.ObservabilityConfig{ServiceName: "applyforge"}, "test", testLogger)
	require.NoError(t, err)

	if svc == nil {
		svc = service.New(config.AIConfig{Provider: "demo"}, ai.NewDemoClient(testLogger), store.NewMemoryStore(), testLogger)
	}
	cfg.Version = "test"
	s := NewServer(cfg, svc, om, testLogger)
	t.Cleanup(s.cleanup)
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGenerateEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)

	rec := do(s, jsonRequest(t, http.MethodPost, "/generate", types.GenerateInput{
		JobDescription:     "Senior Go Engineer",
		CompanyDescription: "Infrastructure startup",
		Resume:             &types.ResumeData{Skills: []string{"Go"}},
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get("X-Run-ID"))
	assert.NoError(t, err, "X-Run-ID must be a UUID")

	var result types.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, result.QualityAnalysis.OverallScore, result.QualityScore)
	assert.NotEmpty(t, result.Email.SubjectLine)
}

func TestGenerateEndpointErrors(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)

	t.Run("blank job description", func(t *testing.T) {
		rec := do(s, jsonRequest(t, http.MethodPost, "/generate", types.GenerateInput{
			CompanyDescription: "company",
			Resume:             &types.ResumeData{},
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	})

	t.Run("blank job description and no saved resume", func(t *testing.T) {
		rec := do(s, jsonRequest(t, http.MethodPost, "/generate", types.GenerateInput{
			CompanyDescription: "company",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "job description is required")
	})

	t.Run("no saved resume", func(t *testing.T) {
		rec := do(s, jsonRequest(t, http.MethodPost, "/generate", types.GenerateInput{
			JobDescription:     "job",
			CompanyDescription: "company",
		}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "text/plain")
		assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(s, httptest.NewRequest(http.MethodGet, "/generate", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestParseResumeThenGenerate(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/parse-resume", strings.NewReader("John Doe\nSenior Software Engineer"))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var parsed types.ResumeData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, "John Doe", parsed.Contact.Name)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The saved résumé is now the default input
	rec = do(s, jsonRequest(t, http.MethodPost, "/generate", types.GenerateInput{
		JobDescription:     "job",
		CompanyDescription: "company",
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseResumeMultipart(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "resume.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("John Doe resume text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/parse-resume", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(s, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	missing := httptest.NewRequest(http.MethodPost, "/parse-resume", strings.NewReader("--x--\r\n"))
	missing.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, do(s, missing).Code)
}

func TestParseResumeReadFailure(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/parse-resume", strings.NewReader(oleMagic))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := do(s, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "read", decodeError(t, rec).Phase)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/resume", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxRequestSize: 16}, nil)

	req := httptest.NewRequest(http.MethodPost, "/parse-resume", strings.NewReader(strings.Repeat("a", 64)))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(s, req).Code)
}

func TestErrorResponseMapping(t *testing.T) {
	inference := &errors.InferenceFailure{Operation: "strategy", Cause: stderrors.New("503")}
	timeout := &errors.InferenceFailure{Operation: "strategy", Cause: context.DeadlineExceeded}
	pipelineErr := func(cause error) error {
		return &errors.PipelineFailure{Stage: "strategy", Position: 2, Cause: &errors.StageFailure{Stage: "strategy", Cause: cause}}
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantStage  string
		wantPhase  string
	}{
		{"validation", errors.NewValidationError(errors.ErrCodeInvalidRequest, "job description is required", nil), http.StatusBadRequest, "", ""},
		{"no saved resume", fmt.Errorf("%w: parse one first", store.ErrResumeNotFound), http.StatusNotFound, "", ""},
		{"read phase", &errors.ExtractionFailure{Phase: errors.PhaseRead, Cause: stderrors.New("bad pdf")}, http.StatusUnprocessableEntity, "", "read"},
		{"parse phase", &errors.ExtractionFailure{Phase: errors.PhaseParse, Cause: inference}, http.StatusBadGateway, "", "parse"},
		{"parse timeout", &errors.ExtractionFailure{Phase: errors.PhaseParse, Cause: timeout}, http.StatusGatewayTimeout, "", "parse"},
		{"pipeline", pipelineErr(inference), http.StatusBadGateway, "strategy", ""},
		{"pipeline schema", pipelineErr(&errors.SchemaViolation{Stage: "strategy", Missing: []string{"approach"}}), http.StatusBadGateway, "strategy", ""},
		{"pipeline timeout", pipelineErr(timeout), http.StatusGatewayTimeout, "strategy", ""},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "", ""},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantStage, body.Stage)
			assert.Equal(t, tt.wantPhase, body.Phase)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{APIKeys: []string{"secret-key-123"}}, nil)

	tests := []struct {
		name       string
		setHeaders func(*http.Request)
		wantStatus int
	}{
		{"missing key", func(*http.Request) {}, http.StatusUnauthorized},
		{"invalid key", func(r *http.Request) { r.Header.Set("X-API-Key", "wrong") }, http.StatusUnauthorized},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "secret-key-123") }, http.StatusNotFound},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-key-123") }, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/resume", nil)
			tt.setHeaders(req)
			assert.Equal(t, tt.wantStatus, do(s, req).Code)
		})
	}

	// Health stays public
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	s.SetAPIKeys(nil)
	assert.Equal(t, http.StatusNotFound, do(s, httptest.NewRequest(http.MethodGet, "/resume", nil)).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{RateLimit: config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 1,
		BurstCapacity:  1,
		ByIP:           true,
	}}, nil)

	first := do(s, httptest.NewRequest(http.MethodGet, "/resume", nil))
	assert.Equal(t, http.StatusNotFound, first.Code)

	second := do(s, httptest.NewRequest(http.MethodGet, "/resume", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := httptest.NewRequest(http.MethodGet, "/resume", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, http.StatusNotFound, do(s, other).Code, "a different client has its own bucket")
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	req.Header.Set("Authorization", "Bearer abc")

	key, kind := getRateLimitKey(req, true, true)
	assert.Equal(t, "api:abc", key)
	assert.Equal(t, "api_key", kind)

	key, kind = getRateLimitKey(req, false, true)
	assert.Equal(t, "ip:198.51.100.7", key)
	assert.Equal(t, "ip", kind)

	key, _ = getRateLimitKey(req, false, false)
	assert.Empty(t, key)

	assert.Equal(t, "", parseFirstIP("not-an-ip, also-not"))
}

type unhealthyService struct {
	Service
}

func (unhealthyService) ModelInfo(context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "gemini-2.0-flash", Available: false, Error: "model not found"}
}

func (unhealthyService) Stats() map[string]any {
	return map[string]any{"healthy": false, "generate": map[string]any{"state": "open"}}
}

func (unhealthyService) StoreHealth(context.Context) error { return nil }

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{}, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	degraded := newTestServer(t, ServerConfig{}, unhealthyService{})
	rec = do(degraded, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"state": "open"}, body["circuit_breaker"])
}

func TestHealthEndpointReportsRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	resumes := store.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	svc := service.New(config.AIConfig{Provider: "demo"}, ai.NewDemoClient(testLogger), resumes, testLogger)
	s := newTestServer(t, ServerConfig{}, svc)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"status": "ok"}, body["store"])

	mr.Close()
	rec = do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	storeStatus, ok := body["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unavailable", storeStatus["status"])
	assert.Contains(t, storeStatus["error"], "redis ping failed")
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{MaxRequestSize: 1024, APIKeys: []string{"k1", "k2"}}, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Server   map[string]any `json:"server"`
		Pipeline struct {
			Stages         []string       `json:"stages"`
			DirectiveChars map[string]int `json:"directive_chars"`
		} `json:"pipeline"`
		AI map[string]any `json:"ai"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"context", "strategy", "content", "qa"}, body.Pipeline.Stages)
	assert.Len(t, body.Pipeline.DirectiveChars, 5)
	assert.Equal(t, len(pipeline.DefaultDirectives[pipeline.StageQA]), body.Pipeline.DirectiveChars["qa"])
	assert.Equal(t, float64(2), body.Server["api_keys"])
	assert.Equal(t, "demo", body.AI["provider"])
}

package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 30,
			TotalTokenCount:      150,
		},
	}
}

type scriptedGenerate struct {
	mu        sync.Mutex
	calls     int
	responses []*genai.GenerateContentResponse
	errs      []error
	lastCfg   *genai.GenerateContentConfig
	lastModel string
}

func (s *scriptedGenerate) generate(ctx context.Context, model, payload string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.lastCfg = cfg
	s.lastModel = model
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Provider:       "gemini",
		Model:          "gemini-test",
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		Temperature:    0.7,
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: false},
	}
}

func newTestGemini(cfg config.AIConfig, gen generateFunc) *GeminiClient {
	g := newGeminiClient(cfg, testLogger, gen, func(context.Context, string) (*genai.Model, error) {
		return &genai.Model{DisplayName: "Gemini Test", Version: "001"}, nil
	})
	g.baseDelay = time.Millisecond
	return g
}

var validRequest = Request{Operation: "context", Directive: "You analyze job postings.", Payload: "Job Description:\nBuild things"}

func TestInvokeReturnsObjectBody(t *testing.T) {
	script := &scriptedGenerate{responses: []*genai.GenerateContentResponse{
		textResponse("```json\n{\"approach\": \"lead\", \"key_points\": [\"a\"]}\n```"),
	}}
	g := newTestGemini(testAIConfig(), script.generate)

	resp, err := g.Invoke(context.Background(), validRequest)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if decoded["approach"] != "lead" {
		t.Errorf("Expected approach 'lead', got %v", decoded["approach"])
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 150 {
		t.Errorf("Expected token usage with 150 total tokens, got %+v", resp.Usage)
	}
	if script.lastCfg.ResponseMIMEType != "application/json" {
		t.Errorf("Expected JSON response MIME type, got %q", script.lastCfg.ResponseMIMEType)
	}
	if script.lastCfg.SystemInstruction == nil {
		t.Error("Expected directive to be sent as system instruction")
	}
	if script.lastModel != "gemini-test" {
		t.Errorf("Expected model 'gemini-test', got %q", script.lastModel)
	}
}

func TestInvokeSendsResponseSchema(t *testing.T) {
	script := &scriptedGenerate{responses: []*genai.GenerateContentResponse{
		textResponse(`{"approach": "lead", "key_points": ["a"]}`),
	}}
	g := newTestGemini(testAIConfig(), script.generate)

	if _, err := g.Invoke(context.Background(), validRequest); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if script.lastCfg.ResponseSchema != nil {
		t.Errorf("Expected no response schema without one on the request, got %+v", script.lastCfg.ResponseSchema)
	}

	shape := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"approach", "key_points"},
		Properties: map[string]*genai.Schema{
			"approach":   {Type: genai.TypeString},
			"key_points": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
	}
	req := validRequest
	req.ResponseSchema = shape
	if _, err := g.Invoke(context.Background(), req); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if script.lastCfg.ResponseSchema != shape {
		t.Errorf("Expected the request's response schema to reach the provider config")
	}
}

func TestInvokeRejectsEmptyInputs(t *testing.T) {
	script := &scriptedGenerate{responses: []*genai.GenerateContentResponse{textResponse(`{}`)}}
	g := newTestGemini(testAIConfig(), script.generate)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty directive", Request{Operation: "qa", Payload: "x"}, ErrEmptyDirective},
		{"blank payload", Request{Operation: "qa", Directive: "d", Payload: "  \n"}, ErrEmptyPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Invoke(context.Background(), tt.req)
			var failure *errors.InferenceFailure
			if !stderrors.As(err, &failure) {
				t.Fatalf("Expected InferenceFailure, got %T: %v", err, err)
			}
			if !stderrors.Is(err, tt.want) {
				t.Errorf("Expected cause %v, got %v", tt.want, failure.Cause)
			}
		})
	}
	if script.calls != 0 {
		t.Errorf("Expected provider not to be called, got %d calls", script.calls)
	}
}

func TestInvokeNonObjectBodies(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose", "Sure! Here is your analysis."},
		{"array", `["a", "b"]`},
		{"empty", "   "},
		{"trailing data", `{"a": 1} {"b": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := &scriptedGenerate{responses: []*genai.GenerateContentResponse{textResponse(tt.text)}}
			g := newTestGemini(testAIConfig(), script.generate)

			_, err := g.Invoke(context.Background(), validRequest)
			if !errors.IsInferenceFailure(err) {
				t.Errorf("Expected InferenceFailure, got %v", err)
			}
		})
	}
}

func TestInvokeRetriesTransientErrors(t *testing.T) {
	script := &scriptedGenerate{
		errs: []error{
			&googleapi.Error{Code: 503, Message: "overloaded"},
			&net.OpError{Op: "dial", Err: stderrors.New("connection refused")},
		},
		responses: []*genai.GenerateContentResponse{nil, nil, textResponse(`{"ok": true}`)},
	}
	g := newTestGemini(testAIConfig(), script.generate)

	if _, err := g.Invoke(context.Background(), validRequest); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if script.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", script.calls)
	}
}

func TestInvokeDoesNotRetryClientErrors(t *testing.T) {
	script := &scriptedGenerate{
		errs:      []error{&googleapi.Error{Code: 400, Message: "bad request"}},
		responses: []*genai.GenerateContentResponse{textResponse(`{}`)},
	}
	g := newTestGemini(testAIConfig(), script.generate)

	_, err := g.Invoke(context.Background(), validRequest)
	if !errors.IsInferenceFailure(err) {
		t.Fatalf("Expected InferenceFailure, got %v", err)
	}
	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Errorf("Expected provider error to be preserved in the chain, got %v", err)
	}
	if script.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", script.calls)
	}
}

func TestInvokeTimeout(t *testing.T) {
	cfg := testAIConfig()
	cfg.Timeout = 20 * time.Millisecond

	g := newTestGemini(cfg, func(ctx context.Context, _, _ string, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		<-ctx.Done()
		return nil, stderrors.New("transport gave up")
	})

	_, err := g.Invoke(context.Background(), validRequest)
	if !errors.IsTimeout(err) {
		t.Fatalf("Expected timeout InferenceFailure, got %v", err)
	}
}

func TestInvokeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newTestGemini(testAIConfig(), func(ctx context.Context, _, _ string, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := g.Invoke(ctx, validRequest)
	if !errors.IsInferenceFailure(err) || !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancelled InferenceFailure, got %v", err)
	}
}

func TestInvokeOpenBreakerIsInferenceFailure(t *testing.T) {
	cfg := testAIConfig()
	cfg.MaxRetries = 0
	cfg.CircuitBreaker = breakerConfig()

	script := &scriptedGenerate{
		errs:      []error{stderrors.New("x"), stderrors.New("x"), stderrors.New("x")},
		responses: []*genai.GenerateContentResponse{textResponse(`{}`)},
	}
	g := newTestGemini(cfg, script.generate)

	for range 3 {
		_, _ = g.Invoke(context.Background(), validRequest)
	}
	_, err := g.Invoke(context.Background(), validRequest)
	if !errors.IsInferenceFailure(err) {
		t.Fatalf("Expected InferenceFailure from open breaker, got %v", err)
	}
	if script.calls != 3 {
		t.Errorf("Expected open breaker to skip the provider, got %d calls", script.calls)
	}
	if healthy, _ := g.Stats()["healthy"].(bool); healthy {
		t.Error("Expected stats to report an unhealthy breaker")
	}
}

func TestBackoffIsCapped(t *testing.T) {
	g := newTestGemini(testAIConfig(), nil)
	g.baseDelay = time.Second

	if d := g.backoff(1); d < time.Second || d > 1100*time.Millisecond {
		t.Errorf("Expected first backoff near 1s, got %v", d)
	}
	if d := g.backoff(10); d != maxBackoff {
		t.Errorf("Expected backoff capped at %v, got %v", maxBackoff, d)
	}
}

func TestModelInfo(t *testing.T) {
	g := newTestGemini(testAIConfig(), nil)

	info := g.ModelInfo(context.Background())
	if !info.Available {
		t.Fatalf("Expected model to be available, got error %q", info.Error)
	}
	if info.DisplayName != "Gemini Test" || info.Version != "001" {
		t.Errorf("Unexpected model info: %+v", info)
	}

	g.getModel = func(context.Context, string) (*genai.Model, error) {
		return nil, &googleapi.Error{Code: 404, Message: "model not found"}
	}
	info = g.ModelInfo(context.Background())
	if info.Available || info.Error == "" {
		t.Errorf("Expected unavailable model with error, got %+v", info)
	}
}

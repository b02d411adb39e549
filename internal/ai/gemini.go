package ai

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

const maxBackoff = 30 * time.Second

type generateFunc func(ctx context.Context, model, payload string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type modelFunc func(ctx context.Context, model string) (*genai.Model, error)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client       *genai.Client
	generate     generateFunc
	getModel     modelFunc
	cfg          config.AIConfig
	baseDelay    time.Duration
	breaker      *Breaker[*genai.GenerateContentResponse]
	modelBreaker *Breaker[*genai.Model]
	logger       *errors.Logger
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini-backed client
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, logger *errors.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	g := newGeminiClient(cfg, logger,
		func(ctx context.Context, model, payload string, gc *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return client.Models.GenerateContent(ctx, model, genai.Text(payload), gc)
		},
		func(ctx context.Context, model string) (*genai.Model, error) {
			return client.Models.Get(ctx, model, &genai.GetModelConfig{})
		})
	g.client = client
	return g, nil
}

func newGeminiClient(cfg config.AIConfig, logger *errors.Logger, generate generateFunc, getModel modelFunc) *GeminiClient {
	return &GeminiClient{
		generate:     generate,
		getModel:     getModel,
		cfg:          cfg,
		baseDelay:    time.Second,
		breaker:      NewBreaker[*genai.GenerateContentResponse]("AI-Generate", cfg.CircuitBreaker, logger),
		modelBreaker: NewModelBreaker[*genai.Model]("AI-Model", cfg.CircuitBreaker, logger),
		logger:       logger,
	}
}

// Invoke implements Client. The per-call timeout covers every retry attempt.
func (g *GeminiClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	tracer := otel.Tracer("applyforge.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+req.Operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.cfg.Model),
		attribute.String("ai.operation", req.Operation),
		attribute.Float64("ai.temperature", float64(g.cfg.Temperature)),
		attribute.Int("input.payload_length", len(req.Payload)),
	)

	fail := func(callCtx context.Context, err error) (*Response, error) {
		failure := inferenceFailure(callCtx, req.Operation, err)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		span.SetAttributes(attribute.Bool("success", false))
		return nil, failure
	}

	if err := req.validate(); err != nil {
		return fail(ctx, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	temperature := g.cfg.Temperature
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		Temperature:       &temperature,
		SystemInstruction: genai.NewContentFromText(req.Directive, genai.RoleUser),
		ResponseSchema:    req.ResponseSchema,
	}

	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(callCtx, req.Operation, func() (*genai.GenerateContentResponse, error) {
			return g.generate(callCtx, g.cfg.Model, req.Payload, genaiConfig)
		})
	})
	if err != nil {
		return fail(callCtx, err)
	}

	body, err := DecodeObject(result.Text())
	if err != nil {
		return fail(callCtx, err)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))

	return &Response{Body: body, Usage: usage}, nil
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiClient) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", g.cfg.MaxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("retry of %s abandoned: %w", operation, stderrors.Join(lastErr, ctx.Err()))
			}
		}

		attempts++
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempts)
			}
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed",
		"operation", operation,
		"total_attempts", attempts)

	return nil, fmt.Errorf("operation '%s' failed after %d attempt(s): %w", operation, attempts, lastErr)
}

// backoff doubles per attempt with up to 10% jitter, capped at 30 seconds
func (g *GeminiClient) backoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * g.baseDelay
	var jitter time.Duration
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		jitterBig, _ := rand.Int(rand.Reader, big.NewInt(jitterMax))
		jitter = time.Duration(jitterBig.Int64())
	}
	return min(baseDelay+jitter, maxBackoff)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeouts, refused connections) are transient
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// ModelInfo checks the readiness and availability of the configured model
func (g *GeminiClient) ModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:     g.cfg.Model,
		Provider: "gemini",
	}

	timeout := g.cfg.ModelCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.getModel(checkCtx, g.cfg.Model)
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.cfg.Model,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model != nil {
		modelInfo.DisplayName = model.DisplayName
		modelInfo.Version = model.Version
	}

	g.logger.Debug("Model availability check successful",
		"model", g.cfg.Model,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// Stats returns circuit breaker statistics
func (g *GeminiClient) Stats() map[string]any {
	return map[string]any{
		"provider":    "gemini",
		"model":       g.cfg.Model,
		"generate":    g.breaker.Stats(),
		"model_check": g.modelBreaker.Stats(),
		"healthy":     g.breaker.IsHealthy(),
		"max_retries": g.cfg.MaxRetries,
		"timeout":     g.cfg.Timeout.String(),
	}
}

// Close releases provider resources. The genai client holds none.
func (g *GeminiClient) Close() error {
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

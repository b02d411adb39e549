package ai

import (
	"context"
	"fmt"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

// NewClient creates the inference client selected by cfg.Provider
func NewClient(ctx context.Context, cfg config.AIConfig, logger *errors.Logger) (Client, error) {
	logger.Debug("Initializing AI client",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"circuit_breaker", cfg.CircuitBreaker.Enabled)

	switch cfg.Provider {
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "demo":
		return NewDemoClient(logger), nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// Package store persists the single saved résumé that generation runs fall
// back to when the caller supplies none.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/types"
)

// Key is the fixed name the saved résumé is stored under
const Key = "savedResumeContext"

// ErrResumeNotFound is returned by Get when nothing has been saved yet
var ErrResumeNotFound = stderrors.New("no saved resume")

// ResumeStore holds one résumé, overwritten on every Put
type ResumeStore interface {
	Get(ctx context.Context) (*types.ResumeData, error)
	Put(ctx context.Context, resume *types.ResumeData) error
	Close() error
}

// Pinger is implemented by stores backed by a remote service
type Pinger interface {
	Ping(ctx context.Context) error
}

// New creates the store selected by cfg.Backend
func New(cfg config.StoreConfig, logger *errors.Logger) (ResumeStore, error) {
	logger.Debug("Initializing resume store", "backend", cfg.Backend)

	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported store backend: %s", cfg.Backend), nil)
	}
}

func encode(resume *types.ResumeData) ([]byte, error) {
	if resume == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidResume, "resume must not be nil", nil)
	}
	data, err := json.Marshal(resume)
	if err != nil {
		return nil, fmt.Errorf("encode resume: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*types.ResumeData, error) {
	var resume types.ResumeData
	if err := json.Unmarshal(data, &resume); err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeInvalidResume, "saved resume is not valid JSON", err)
	}
	return &resume, nil
}

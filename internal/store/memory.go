package store

import (
	"context"
	"sync"

	"applyforge/internal/types"
)

// MemoryStore keeps the résumé in process. It stores the encoded form so
// callers never share the saved value.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (*types.ResumeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrResumeNotFound
	}
	return decode(m.data)
}

func (m *MemoryStore) Put(ctx context.Context, resume *types.ResumeData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(resume)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

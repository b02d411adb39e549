package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"applyforge/internal/errors"
	"applyforge/internal/types"
)

// FileStore keeps the résumé as a JSON file under a directory
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates dir if needed and returns a store writing to
// dir/savedResumeContext.json.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreUnavailable,
			fmt.Sprintf("cannot create store directory %s", dir), err)
	}
	return &FileStore{path: filepath.Join(dir, Key+".json")}, nil
}

// Path returns the file the résumé is written to
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(ctx context.Context) (*types.ResumeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot read saved resume", err)
	}
	return decode(data)
}

// Put replaces the file atomically through a temp file and rename
func (f *FileStore) Put(ctx context.Context, resume *types.ResumeData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(resume)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), Key+"-*.tmp")
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot write saved resume", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot write saved resume", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot write saved resume", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreUnavailable, "cannot replace saved resume", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

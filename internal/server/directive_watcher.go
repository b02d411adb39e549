package server

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

// DirectiveCallback installs a reloaded directive for one stage
type DirectiveCallback func(stage, directive string) error

// DirectiveWatcher watches directive files and swaps a stage's directive
// when its file content changes
type DirectiveWatcher struct {
	mu sync.RWMutex

	// stage -> absolute path
	files map[string]string
	// stage -> last directive applied from its file
	applied map[string]string

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	apply  DirectiveCallback
	logger *errors.Logger

	running    bool
	reloads    int
	lastError  string
	lastReload time.Time
}

// NewDirectiveWatcher creates a watcher for files, keyed by stage
func NewDirectiveWatcher(files map[string]string, debounceDelay time.Duration, apply DirectiveCallback, logger *errors.Logger) *DirectiveWatcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}

	return &DirectiveWatcher{
		files:         maps.Clone(files),
		applied:       make(map[string]string),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		apply:         apply,
		logger:        logger,
	}
}

// Start begins watching the directive files
func (dw *DirectiveWatcher) Start() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.running {
		return fmt.Errorf("directive watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dw.fsWatcher = watcher

	// The startup content was applied during config loading
	for stage, path := range dw.files {
		if content, err := config.ReadDirectiveFile(path, stage); err == nil {
			dw.applied[stage] = content
		}
		dw.addFileToWatcher(path)
	}

	dw.running = true
	go dw.watchLoop()

	dw.logger.Info("Directive file watcher started",
		"stages", slices.Sorted(maps.Keys(dw.files)),
		"debounce_delay", dw.debounceDelay)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (dw *DirectiveWatcher) Stop() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.running {
		return
	}

	close(dw.stopChan)
	if dw.debounceTimer != nil {
		dw.debounceTimer.Stop()
	}
	if dw.fsWatcher != nil {
		if err := dw.fsWatcher.Close(); err != nil {
			dw.logger.LogError(err, "Failed to close directive file watcher")
		}
	}
	dw.running = false

	dw.logger.Info("Directive file watcher stopped")
}

// addFileToWatcher watches the file's directory, which also catches editors
// and config management tools that replace the file by rename
func (dw *DirectiveWatcher) addFileToWatcher(path string) {
	dir := filepath.Dir(path)
	if err := dw.fsWatcher.Add(dir); err != nil {
		dw.logger.Warn("Failed to watch directive directory", "directory", dir, "error", err)
	}
}

func (dw *DirectiveWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-dw.fsWatcher.Events:
			if !ok {
				return
			}
			if dw.shouldProcessEvent(event) {
				dw.scheduleReload()
			}

		case err, ok := <-dw.fsWatcher.Errors:
			if !ok {
				return
			}
			dw.logger.LogError(err, "Directive file watcher error")

		case <-dw.reloadChan:
			dw.reload()

		case <-dw.stopChan:
			return
		}
	}
}

func (dw *DirectiveWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	for _, path := range dw.files {
		if name == path {
			return true
		}
	}
	return false
}

func (dw *DirectiveWatcher) scheduleReload() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.debounceTimer != nil {
		dw.debounceTimer.Stop()
	}

	dw.debounceTimer = time.AfterFunc(dw.debounceDelay, func() {
		select {
		case dw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// reload re-reads every directive file and applies the ones whose content
// changed. A file that is missing or empty keeps the previous directive.
// It returns the stages that were updated.
func (dw *DirectiveWatcher) reload() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var updated []string
	for _, stage := range slices.Sorted(maps.Keys(dw.files)) {
		path := dw.files[stage]

		content, err := config.ReadDirectiveFile(path, stage)
		if err != nil {
			dw.lastError = err.Error()
			dw.logger.Warn("Keeping previous directive", "stage", stage, "error", err)
			continue
		}
		if content == dw.applied[stage] {
			continue
		}

		if err := dw.apply(stage, content); err != nil {
			dw.lastError = err.Error()
			dw.logger.LogError(err, "Failed to apply reloaded directive", "stage", stage)
			continue
		}

		dw.applied[stage] = content
		dw.reloads++
		dw.lastReload = time.Now()
		dw.lastError = ""
		updated = append(updated, stage)
		dw.logger.Info("Directive reloaded from file", "stage", stage, "file", path, "chars", len(content))
	}
	return updated
}

// Status reports the watcher state for the stats endpoint
func (dw *DirectiveWatcher) Status() map[string]any {
	dw.mu.RLock()
	defer dw.mu.RUnlock()

	status := map[string]any{
		"running": dw.running,
		"stages":  slices.Sorted(maps.Keys(dw.files)),
		"reloads": dw.reloads,
	}
	if !dw.lastReload.IsZero() {
		status["last_reload"] = dw.lastReload
	}
	if dw.lastError != "" {
		status["last_error"] = dw.lastError
	}
	return status
}

package server

import (
	"fmt"
	"sync"
	"time"

	"applyforge/internal/config"
	"applyforge/internal/errors"
)

// VaultClientInterface is the part of the Vault client the watcher needs
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// APIKeysCallback receives the rotated key list
type APIKeysCallback func(keys []string)

// VaultWatcher polls the API keys secret and hands new versions to the
// callback. Versions at or below the one seen at startup are ignored.
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onRotate     APIKeysCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastCheck   time.Time
	lastError   string
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onRotate APIKeysCallback, logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}

	// Keys at the current version were already applied during config loading
	if secret, err := vw.client.GetSecretV2(vw.secretPath); err == nil && secret != nil {
		vw.lastVersion = secret.Version
	}

	vw.running = true
	go vw.pollLoop()
	vw.logger.Info("Vault watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return
	}
	close(vw.stopChan)
	vw.running = false
	vw.logger.Info("Vault watcher stopped")
}

func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := vw.poll(); err != nil {
				vw.logger.LogError(err, "Failed to refresh API keys from Vault", "secret_path", vw.secretPath)
			}
		case <-vw.stopChan:
			return
		}
	}
}

// poll applies a newer key list if the secret version moved
func (vw *VaultWatcher) poll() error {
	changed, err := vw.checkForUpdates()
	if err == nil && changed {
		var keys []string
		keys, err = vw.client.GetStringSliceSecret(vw.secretPath, "keys")
		if err == nil {
			vw.onRotate(keys)
			vw.logger.Info("API keys rotated from Vault", "count", len(keys))
		}
	}

	vw.mu.Lock()
	vw.lastCheck = time.Now()
	vw.lastError = ""
	if err != nil {
		vw.lastError = err.Error()
	}
	vw.mu.Unlock()
	return err
}

// checkForUpdates checks if the Vault secret version has changed
func (vw *VaultWatcher) checkForUpdates() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("secret %s not found", vw.secretPath)
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return true, nil
	}
	return false, nil
}

// Status returns the current status of the VaultWatcher for /stats
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	status := map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
	if !vw.lastCheck.IsZero() {
		status["last_check"] = vw.lastCheck.Format(time.RFC3339)
	}
	if vw.lastError != "" {
		status["last_error"] = vw.lastError
	}
	return status
}

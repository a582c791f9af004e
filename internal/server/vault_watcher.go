package server

import (
	"fmt"
	"sync"
	"time"

	"medpassport/internal/config"
	"medpassport/internal/errors"
)

// VaultClientInterface defines the interface for Vault operations
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// KeyRotationCallback receives a new signing key, or the error that
// prevented reading one.
type KeyRotationCallback func(key string, err error)

// VaultWatcher polls the signing key secret and hands each new version to
// the callback. The version present at Start is taken as current.
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onRotate     KeyRotationCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	rotations   int
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onRotate KeyRotationCallback, logger *errors.Logger) *VaultWatcher {
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

	if _, err := vw.checkForUpdates(); err != nil && vw.logger != nil {
		vw.logger.LogError(err, "Initial signing key version check failed")
	}

	vw.running = true
	go vw.pollLoop()
	if vw.logger != nil {
		vw.logger.Info("Vault watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	}
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	if vw.logger != nil {
		vw.logger.Info("Vault watcher stopped")
	}
	return nil
}

func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vw.poll()
		case <-vw.stopChan:
			return
		}
	}
}

// poll runs one check and calls back on a new version.
func (vw *VaultWatcher) poll() {
	vw.mu.Lock()
	changed, err := vw.checkForUpdates()
	vw.mu.Unlock()

	if err != nil {
		if vw.logger != nil {
			vw.logger.LogError(err, "Failed to check Vault for updates")
		}
		return
	}
	if !changed {
		return
	}

	key, err := vw.fetchSigningKey()
	if err != nil {
		if vw.logger != nil {
			vw.logger.LogError(err, "Failed to fetch new signing key from Vault")
		}
		vw.onRotate("", err)
		return
	}

	vw.mu.Lock()
	vw.rotations++
	vw.mu.Unlock()
	if vw.logger != nil {
		vw.logger.Info("New signing key fetched from Vault, rotating")
	}
	vw.onRotate(key, nil)
}

// checkForUpdates reports whether the secret version moved forward. The
// caller holds mu.
func (vw *VaultWatcher) checkForUpdates() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("secret not found at path: %s", vw.secretPath)
	}
	if secret.Version > vw.lastVersion {
		first := vw.lastVersion == 0
		vw.lastVersion = secret.Version
		return !first, nil
	}
	return false, nil
}

func (vw *VaultWatcher) fetchSigningKey() (string, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch signing key from vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found at path: %s", vw.secretPath)
	}
	key, err := secret.StringValue(config.VaultKeySigningKey)
	if err != nil {
		return "", err
	}
	if len(key) < config.MinSigningKeyLength {
		return "", fmt.Errorf("signing key from vault is shorter than %d bytes", config.MinSigningKeyLength)
	}
	return key, nil
}

// Status returns the current status of the VaultWatcher for health reporting
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
		"rotations":     vw.rotations,
	}
}

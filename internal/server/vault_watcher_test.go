package server

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"medpassport/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockVaultClient struct {
	mu      sync.Mutex
	secrets map[string]*config.VaultSecret
	err     error
}

func (m *mockVaultClient) GetSecretV2(path string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.secrets[path], nil
}

func (m *mockVaultClient) set(path, key string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[path] = &config.VaultSecret{
		Data:    map[string]any{config.VaultKeySigningKey: key},
		Version: version,
	}
}

const testSecretPath = "secret/data/medpassport/auth"

func newTestWatcher(client VaultClientInterface, onRotate KeyRotationCallback) *VaultWatcher {
	return NewVaultWatcher(client, testSecretPath, time.Minute, onRotate, nil)
}

func TestVaultWatcherInitialVersionDoesNotRotate(t *testing.T) {
	client := &mockVaultClient{secrets: map[string]*config.VaultSecret{}}
	client.set(testSecretPath, strings.Repeat("a", 32), 3)

	var calls int
	vw := newTestWatcher(client, func(string, error) { calls++ })

	vw.poll()
	vw.poll()

	assert.Zero(t, calls)
	assert.Equal(t, int64(3), vw.Status()["last_version"])
}

func TestVaultWatcherRotatesOnVersionBump(t *testing.T) {
	client := &mockVaultClient{secrets: map[string]*config.VaultSecret{}}
	client.set(testSecretPath, strings.Repeat("a", 32), 1)

	var got []string
	vw := newTestWatcher(client, func(key string, err error) {
		require.NoError(t, err)
		got = append(got, key)
	})
	vw.poll()

	newKey := strings.Repeat("b", 40)
	client.set(testSecretPath, newKey, 2)
	vw.poll()
	vw.poll()

	assert.Equal(t, []string{newKey}, got)
	assert.Equal(t, 1, vw.Status()["rotations"])
}

func TestVaultWatcherRejectsShortKey(t *testing.T) {
	client := &mockVaultClient{secrets: map[string]*config.VaultSecret{}}
	client.set(testSecretPath, strings.Repeat("a", 32), 1)

	var gotErr error
	vw := newTestWatcher(client, func(key string, err error) {
		assert.Empty(t, key)
		gotErr = err
	})
	vw.poll()

	client.set(testSecretPath, "too-short", 2)
	vw.poll()

	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "shorter than")
	assert.Equal(t, 0, vw.Status()["rotations"])
}

func TestVaultWatcherReadErrorsAreNotRotations(t *testing.T) {
	client := &mockVaultClient{
		secrets: map[string]*config.VaultSecret{},
		err:     fmt.Errorf("permission denied"),
	}

	var calls int
	vw := newTestWatcher(client, func(string, error) { calls++ })
	vw.poll()

	changed, err := vw.checkForUpdates()
	assert.False(t, changed)
	assert.ErrorContains(t, err, "permission denied")
	assert.Zero(t, calls)
}

func TestVaultWatcherMissingSecret(t *testing.T) {
	client := &mockVaultClient{secrets: map[string]*config.VaultSecret{}}
	vw := newTestWatcher(client, func(string, error) {})

	_, err := vw.checkForUpdates()
	assert.ErrorContains(t, err, "secret not found")
}

func TestVaultWatcherStartStop(t *testing.T) {
	client := &mockVaultClient{secrets: map[string]*config.VaultSecret{}}
	client.set(testSecretPath, strings.Repeat("a", 32), 1)
	vw := newTestWatcher(client, func(string, error) {})

	require.NoError(t, vw.Start())
	assert.Error(t, vw.Start())
	assert.Equal(t, true, vw.Status()["running"])

	require.NoError(t, vw.Stop())
	require.NoError(t, vw.Stop())
	assert.Equal(t, false, vw.Status()["running"])
}

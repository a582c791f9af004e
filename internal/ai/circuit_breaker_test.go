package ai

import (
	"fmt"
	"testing"
	"time"

	"medpassport/internal/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func breakerConfig(enabled bool) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          enabled,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      2,
			FailureThreshold: 0.5,
		},
	}
}

func TestCircuitBreakerTripsAfterFailures(t *testing.T) {
	cb := NewAICircuitBreaker("Classify", breakerConfig(true), nil)
	require.NotNil(t, cb)
	assert.True(t, cb.Healthy())

	failing := func() (*genai.GenerateContentResponse, error) {
		return nil, fmt.Errorf("upstream 503")
	}
	for range 2 {
		_, err := cb.Execute(failing)
		require.Error(t, err)
	}

	assert.False(t, cb.Healthy())

	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Zero(t, calls)

	stats := cb.Stats()
	assert.Equal(t, "AI-Classify", stats["name"])
	assert.Equal(t, "open", stats["state"])
	assert.Equal(t, true, stats["enabled"])
}

func TestCircuitBreakerDisabledPassesThrough(t *testing.T) {
	cb := NewAICircuitBreaker("Classify", breakerConfig(false), nil)
	assert.Nil(t, cb)

	want := &genai.GenerateContentResponse{}
	got, err := cb.Execute(func() (*genai.GenerateContentResponse, error) { return want, nil })
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.True(t, cb.Healthy())
	assert.Equal(t, map[string]any{"enabled": false}, cb.Stats())
}

func TestModelCircuitBreakerIsLenient(t *testing.T) {
	cb := NewModelCircuitBreaker("Classify", breakerConfig(true), nil)
	require.NotNil(t, cb)

	for range 4 {
		_, _ = cb.Execute(func() (*genai.Model, error) { return nil, fmt.Errorf("unavailable") })
	}
	assert.True(t, cb.Healthy(), "model breaker needs five requests before it trips")

	_, _ = cb.Execute(func() (*genai.Model, error) { return nil, fmt.Errorf("unavailable") })
	assert.False(t, cb.Healthy())
	assert.Equal(t, "AI-Model-Classify", cb.Stats()["name"])
}

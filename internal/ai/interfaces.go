package ai

import (
	"context"
)

// AIProvider classifies CV text chunks with an external model.
// ClassifyChunk returns the model's raw text; callers decode it with DecodeChunk.
type AIProvider interface {
	ClassifyChunk(ctx context.Context, chunk string) (string, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// CallTracker wraps a single provider call with telemetry. The returned
// error is the one produced by fn.
type CallTracker func(ctx context.Context, operation string, fn func(ctx context.Context) (*TokenUsage, error)) error

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

package ai

import (
	"medpassport/internal/config"
	"medpassport/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Breaker guards calls that return T. A nil *Breaker runs every call
// unguarded and always reports healthy.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// AICircuitBreaker guards chunk classification calls.
type AICircuitBreaker = Breaker[*genai.GenerateContentResponse]

// ModelCircuitBreaker guards model availability checks.
type ModelCircuitBreaker = Breaker[*genai.Model]

// NewAICircuitBreaker trips once MinRequests calls have been seen and the
// failure ratio reaches FailureThreshold. Returns nil when disabled.
func NewAICircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *AICircuitBreaker {
	threshold := cfg.CircuitBreaker
	return newBreaker[*genai.GenerateContentResponse]("AI-"+operationType, operationType, cfg, logger,
		func(counts gobreaker.Counts) bool {
			return counts.Requests >= threshold.MinRequests && failureRatio(counts) >= threshold.FailureThreshold
		})
}

// NewModelCircuitBreaker guards health probes, which trip late: five
// requests at an 80% failure ratio.
func NewModelCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *ModelCircuitBreaker {
	return newBreaker[*genai.Model]("AI-Model-"+operationType, operationType, cfg, logger,
		func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && failureRatio(counts) >= 0.8
		})
}

func newBreaker[T any](name, operationType string, cfg *config.OperationAIConfig, logger *errors.Logger, readyToTrip func(gobreaker.Counts) bool) *Breaker[T] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.CircuitBreaker.MaxRequests,
		Interval:      cfg.CircuitBreaker.Interval,
		Timeout:       cfg.CircuitBreaker.Timeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: stateLogger(logger, operationType),
	})}
}

func failureRatio(counts gobreaker.Counts) float64 {
	if counts.Requests == 0 {
		return 0
	}
	return float64(counts.TotalFailures) / float64(counts.Requests)
}

// stateLogger reports breaker transitions. A nil logger keeps tests quiet.
func stateLogger(logger *errors.Logger, operationType string) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from gobreaker.State, to gobreaker.State) {
		if logger == nil {
			return
		}
		logger.Warn("Circuit breaker state changed",
			"name", name,
			"operation_type", operationType,
			"from", from.String(),
			"to", to.String())
	}
}

// Execute runs fn through the breaker.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats describes the breaker for /health.
func (b *Breaker[T]) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// Healthy reports whether the breaker is closed.
func (b *Breaker[T]) Healthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}

package ai

import (
	"context"
	"fmt"

	"medpassport/internal/config"
	"medpassport/internal/errors"
	"medpassport/internal/segment"
)

// Service owns the AI provider used for CV classification
type Service struct {
	Provider AIProvider
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

// NewService creates the AI service for chunk classification
func NewService(cfg *config.OperationAIConfig, logger *errors.Logger) (*Service, error) {
	var provider AIProvider
	var err error

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, err
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases the provider
func (s *Service) Close() error {
	return s.Provider.Close()
}

// NewParser picks the CV parser for this deployment. The AI path is used
// only when parser.mode is "ai" and a key is configured; otherwise the
// keyword parser runs and a warning explains why. The returned Service is
// nil on the keyword path.
func NewParser(cfg *config.Config, logger *errors.Logger, tracker CallTracker) (segment.Parser, *Service) {
	segmenter := segment.New(cfg.Parser.MinBlockLength)
	keyword := segment.NewKeywordParser(segmenter)

	if cfg.Parser.Mode != config.ParserModeAI {
		return keyword, nil
	}
	if !cfg.AIEnabled() {
		logger.Warn("AI parsing requested but no API key is configured, using keyword parser")
		return keyword, nil
	}

	classifyCfg := cfg.GetClassifyConfig()
	service, err := NewService(&classifyCfg, logger)
	if err != nil {
		logger.LogError(err, "AI service unavailable, using keyword parser")
		return keyword, nil
	}

	if gp, ok := service.Provider.(*GeminiProvider); ok {
		gp.SetModelCheckTimeout(cfg.Observability.HealthCheck.AIModelCheckTimeout)
	}

	parser := NewChunkParser(service.Provider, segmenter, cfg.Parser.ChunkSize, cfg.Parser.RequestDelay, logger)
	if tracker != nil {
		parser.WithTracker(tracker)
	}
	return parser, service
}

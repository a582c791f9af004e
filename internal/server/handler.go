package server

import (
	"time"

	"medpassport/internal/ai"
	"medpassport/internal/auth"
	"medpassport/internal/config"
	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/extract"
	"medpassport/internal/observability"
	"medpassport/internal/report"
	"medpassport/internal/segment"
	"medpassport/internal/storage"
	"medpassport/internal/store"
	"medpassport/internal/types"
)

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest is the body of PUT /v1/profile
type ProfileRequest struct {
	GlobalTier        string   `json:"global_tier"`
	SelectedCountries []string `json:"selected_countries"`
	Summary           string   `json:"summary"`
}

// ImportRequest carries the rotation candidates the user confirmed
type ImportRequest struct {
	Candidates []types.RotationCandidate `json:"candidates"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Dependencies are the components the handlers call into
type Dependencies struct {
	Store         store.Store
	Auth          *auth.Authenticator
	Extractor     *extract.Registry
	Parser        segment.Parser
	AIService     *ai.Service // nil on the keyword path
	Table         *equivalency.Table
	Bucket        storage.Bucket
	Signer        *storage.Signer
	Reports       *report.Builder
	Observability *observability.ObservabilityManager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig config.TLSConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxRequestSize bounds JSON bodies, MaxUploadSize bounds multipart uploads
	MaxRequestSize int64
	MaxUploadSize  int64

	// PreviewLimit caps the rotation candidates returned by /v1/cv/parse
	PreviewLimit int

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Logger *errors.Logger

	deps Dependencies
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	MaxUploadSize  int64
	PreviewLimit   int
	RateLimit      *config.RateLimitConfig
}

// ServerConfigFrom derives the server settings from the application config.
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		MaxUploadSize:  cfg.Storage.MaxUploadSize,
		PreviewLimit:   cfg.Parser.PreviewLimit,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	if deps.Observability == nil {
		deps.Observability, _ = observability.NewObservabilityManager(observability.ObservabilityConfig{}, appCfg)
	}
	if deps.Table == nil {
		deps.Table = equivalency.Default()
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		MaxUploadSize:  cfg.MaxUploadSize,
		PreviewLimit:   cfg.PreviewLimit,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		deps:           deps,
	}
}

package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (MEDPASSPORT_DATABASE_URL, etc.)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Parser        ParserConfig        `mapstructure:"parser"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Equivalency   EquivalencyConfig   `mapstructure:"equivalency"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds AI service configuration
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Chunk classification overrides
	Classify OperationAIConfig `mapstructure:"classify"`
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio to trip (0.0-1.0)
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before considering failure ratio
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed in half-open state
	Interval         time.Duration `mapstructure:"interval"`         // Period to clear counts in closed state
	Timeout          time.Duration `mapstructure:"timeout"`          // Period of open state before half-open
}

// OperationAIConfig holds the resolved AI configuration for one operation
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig holds custom prompt overrides, inline or from files
type PromptConfig struct {
	System     string `mapstructure:"system"`
	User       string `mapstructure:"user"`
	SystemFile string `mapstructure:"systemFile"`
	UserFile   string `mapstructure:"userFile"`
}

// ParserConfig controls how CV text is segmented
type ParserConfig struct {
	Mode           string        `mapstructure:"mode"`           // keyword or ai
	MinBlockLength int           `mapstructure:"minBlockLength"` // Minimum characters before a block is classified
	PreviewLimit   int           `mapstructure:"previewLimit"`   // Rotation candidates returned to the form
	ChunkSize      int           `mapstructure:"chunkSize"`      // Characters per AI chunk
	RequestDelay   time.Duration `mapstructure:"requestDelay"`   // Pause between AI chunk calls
}

// DatabaseConfig holds the table store connection settings
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or memory
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"maxConns"`
	MinConns        int32         `mapstructure:"minConns"`
	MaxConnLifetime time.Duration `mapstructure:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"maxConnIdleTime"`
	ConnectTimeout  time.Duration `mapstructure:"connectTimeout"`
}

// RedisConfig holds the optional session revocation cache settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds session settings
type AuthConfig struct {
	SigningKey        string        `mapstructure:"signingKey"`
	Issuer            string        `mapstructure:"issuer"`
	SessionTTL        time.Duration `mapstructure:"sessionTTL"`
	MinPasswordLength int           `mapstructure:"minPasswordLength"`
}

// StorageConfig holds the document vault settings
type StorageConfig struct {
	Dir           string        `mapstructure:"dir"`
	SignedURLTTL  time.Duration `mapstructure:"signedURLTTL"`
	PublicBaseURL string        `mapstructure:"publicBaseURL"`
	MaxUploadSize int64         `mapstructure:"maxUploadSize"`
}

// EquivalencyConfig points at an optional YAML overlay for the title table
type EquivalencyConfig struct {
	OverlayFile string `mapstructure:"overlayFile"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string          `mapstructure:"host"`
	Port         string          `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration   `mapstructure:"idleTimeout"`
	TLS          TLSConfig       `mapstructure:"tls"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds server TLS configuration
type TLSConfig struct {
	Mode        string `mapstructure:"mode"` // disabled or server
	CertFile    string `mapstructure:"certFile"`
	KeyFile     string `mapstructure:"keyFile"`
	MinVersion  string `mapstructure:"minVersion"`
	CertContent string `mapstructure:"-"` // Loaded from Vault
	KeyContent  string `mapstructure:"-"` // Loaded from Vault
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByUser         bool          `mapstructure:"byUser"`         // Enable per-session-user rate limiting
	Window         time.Duration `mapstructure:"window"`         // Rate limiting window duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

type BusinessMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

var (
	activeMu    sync.Mutex
	activeViper *viper.Viper
)

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/medpassport/")
	v.AddConfigPath("$HOME/.medpassport")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/medpassport/, $HOME/.medpassport, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	config, err := decode(v)
	if err != nil {
		return nil, err
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.loadPromptFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	activeMu.Lock()
	activeViper = v
	activeMu.Unlock()

	log.Println("[CONFIG] Configuration loading completed successfully")
	return config, nil
}

// decode unmarshals the viper state into a Config and applies fallbacks
func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyFallbacks()
	return &config, nil
}

// WatchConfig re-decodes the config file whenever it changes on disk and
// hands the result to onChange. It returns false when no config file was loaded.
func WatchConfig(onChange func(*Config)) bool {
	activeMu.Lock()
	v := activeViper
	activeMu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Printf("[CONFIG] Config file changed: %s", e.Name)
		updated, err := decode(v)
		if err != nil {
			log.Printf("[CONFIG] Ignoring invalid config change: %v", err)
			return
		}
		if err := updated.Validate(); err != nil {
			log.Printf("[CONFIG] Ignoring invalid config change: %v", err)
			return
		}
		onChange(updated)
	})
	v.WatchConfig()
	return true
}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	switch c.Parser.Mode {
	case ParserModeKeyword, ParserModeAI:
	default:
		return fmt.Errorf("invalid parser mode: %s (expected %s or %s)", c.Parser.Mode, ParserModeKeyword, ParserModeAI)
	}

	if c.Parser.MinBlockLength < 0 {
		return fmt.Errorf("parser minBlockLength must not be negative")
	}

	if c.Parser.RequestDelay < 0 {
		return fmt.Errorf("parser requestDelay must not be negative")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	switch c.Server.TLS.Mode {
	case "", "disabled":
	case "server":
		hasFiles := c.Server.TLS.CertFile != "" && c.Server.TLS.KeyFile != ""
		if !hasFiles && !c.Vault.Enabled {
			return fmt.Errorf("TLS configuration error: server mode requires certFile and keyFile")
		}
	default:
		return fmt.Errorf("TLS configuration error: invalid mode %q (expected disabled or server)", c.Server.TLS.Mode)
	}

	return nil
}

// RequireBackend checks the secrets needed by commands that touch the
// database or issue sessions. The AI key is never required here.
func (c *Config) RequireBackend() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required (set %s_DATABASE_URL environment variable)", EnvPrefix)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if len(c.Auth.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("auth signing key must be at least %d bytes (set %s_AUTH_SIGNINGKEY environment variable)", MinSigningKeyLength, EnvPrefix)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth sessionTTL must be positive")
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir is required")
	}

	if c.Storage.SignedURLTTL <= 0 {
		return fmt.Errorf("storage signedURLTTL must be positive")
	}

	return nil
}

// AIEnabled reports whether the AI classification path can be used.
func (c *Config) AIEnabled() bool {
	return c.Parser.Mode == ParserModeAI && c.GetClassifyConfig().APIKey != ""
}

const (
	EnvPrefix = "MEDPASSPORT"

	ParserModeKeyword = "keyword"
	ParserModeAI      = "ai"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MinSigningKeyLength = 32
)

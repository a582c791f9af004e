package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"medpassport/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets     `mapstructure:"secrets"`
	Watch   VaultWatchConfig `mapstructure:"watch"`
}

// VaultSecrets defines where to find secrets in a KVv2 mount
type VaultSecrets struct {
	DatabaseURL string `mapstructure:"databaseURL"` // key "url"
	SigningKey  string `mapstructure:"signingKey"`  // key "signing_key"
	GeminiKey   string `mapstructure:"geminiKey"`   // key "api_key"
	TLSCerts    string `mapstructure:"tlsCerts"`    // keys "cert" and "key"
}

// VaultWatchConfig controls polling of the signing key secret for rotation
type VaultWatchConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// Keys read from each secret.
const (
	VaultKeyDatabaseURL = "url"
	VaultKeySigningKey  = "signing_key"
	VaultKeyGeminiKey   = "api_key"
	VaultKeyTLSCert     = "cert"
	VaultKeyTLSKey      = "key"
)

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled")
		}
		return nil, nil
	}

	if logger != nil {
		logger.Debug("Initializing Vault client",
			"address", config.Address,
			"namespace", config.Namespace,
			"token_file", config.TokenFile,
			"has_token", config.Token != "")
	}

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to connect to Vault", "address", config.Address)
		}
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	if logger != nil {
		logger.Info("Successfully connected to Vault",
			"address", config.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{client: client, config: config, logger: logger}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			if logger != nil {
				logger.LogError(err, "Failed to read Vault token file", "file", config.TokenFile)
			}
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}

	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	return parseKVv2(secret.Data, path)
}

// parseKVv2 splits a raw KVv2 payload into its data and version
func parseKVv2(raw map[string]any, path string) (*VaultSecret, error) {
	data, ok := raw["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	metadata, ok := raw["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}

	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}

	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue parses version value from the types the Vault API decodes into
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// StringValue returns a non-empty string field of the secret.
func (s *VaultSecret) StringValue(key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret", key)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string", key)
	}
	return strValue, nil
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case len(value) > 0:
		return "****"
	default:
		return ""
	}
}

// secretTarget binds one Vault key to one config field
type secretTarget struct {
	path   string
	key    string
	target *string
	label  string
}

func (c *Config) vaultTargets() []secretTarget {
	s := c.Vault.Secrets
	return []secretTarget{
		{s.DatabaseURL, VaultKeyDatabaseURL, &c.Database.URL, "database URL"},
		{s.SigningKey, VaultKeySigningKey, &c.Auth.SigningKey, "session signing key"},
		{s.GeminiKey, VaultKeyGeminiKey, &c.AI.APIKey, "Gemini API key"},
		{s.TLSCerts, VaultKeyTLSCert, &c.Server.TLS.CertContent, "TLS certificate"},
		{s.TLSCerts, VaultKeyTLSKey, &c.Server.TLS.KeyContent, "TLS private key"},
	}
}

// secretReader is the subset of VaultClient used to apply secrets
type secretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled, skipping secret loading")
		}
		return nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	return applySecrets(client, config, logger)
}

// applySecrets copies every configured secret into the config. Each path is read once.
func applySecrets(reader secretReader, config *Config, logger *errors.Logger) error {
	cache := make(map[string]*VaultSecret)
	applied := 0

	for _, t := range config.vaultTargets() {
		if t.path == "" {
			continue
		}

		secret, ok := cache[t.path]
		if !ok {
			var err error
			secret, err = reader.GetSecretV2(t.path)
			if err != nil {
				return fmt.Errorf("failed to load %s from vault: %w", t.label, err)
			}
			cache[t.path] = secret
		}

		value, err := secret.StringValue(t.key)
		if err != nil || value == "" {
			if logger != nil {
				logger.Warn("Secret missing in Vault", "label", t.label, "path", t.path, "key", t.key)
			}
			continue
		}

		*t.target = value
		applied++
		if logger != nil {
			logger.Debug("Secret loaded from Vault", "label", t.label, "path", t.path, "masked_value", maskSecret(value))
		}
	}

	if config.AI.Classify.APIKey == "" && config.AI.APIKey != "" {
		config.AI.Classify.APIKey = config.AI.APIKey
	}

	if logger != nil {
		logger.Info("Successfully completed applying secrets from Vault", "secrets_loaded", applied)
	}
	return nil
}

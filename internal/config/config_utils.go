package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies legacy environment variables and derived defaults
func (c *Config) applyFallbacks() {
	c.applyAIKeyFallback()
	c.applyParserBounds()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyAIKeyFallback accepts the provider's conventional variable when no key is configured
func (c *Config) applyAIKeyFallback() {
	if c.AI.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.AI.APIKey = key
		}
	}
}

// applyParserBounds clamps parser settings into their supported ranges
func (c *Config) applyParserBounds() {
	c.Parser.Mode = strings.ToLower(strings.TrimSpace(c.Parser.Mode))
	switch {
	case c.Parser.ChunkSize <= 0:
		c.Parser.ChunkSize = 2000
	case c.Parser.ChunkSize < 1000:
		c.Parser.ChunkSize = 1000
	case c.Parser.ChunkSize > 3000:
		c.Parser.ChunkSize = 3000
	}
	if c.Parser.PreviewLimit <= 0 {
		c.Parser.PreviewLimit = 5
	}
}

func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode == "server" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		EnvPrefix + "_DATABASE_URL",
		EnvPrefix + "_DATABASE_DRIVER",
		EnvPrefix + "_AUTH_SIGNINGKEY",
		EnvPrefix + "_AI_APIKEY",
		EnvPrefix + "_AI_MODEL",
		EnvPrefix + "_PARSER_MODE",
		EnvPrefix + "_SERVER_PORT",
		EnvPrefix + "_SERVER_HOST",
		EnvPrefix + "_APP_LOGLEVEL",
		EnvPrefix + "_VAULT_ENABLED",
		"GEMINI_API_KEY",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitive(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Database Driver: %s", c.Database.Driver)
	log.Printf("[CONFIG] Database URL: %s", configuredOrNot(c.Database.URL))
	log.Printf("[CONFIG] Signing Key: %s", configuredOrNot(c.Auth.SigningKey))
	log.Printf("[CONFIG] Parser Mode: %s", c.Parser.Mode)
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	log.Printf("[CONFIG] AI API Key: %s", configuredOrNot(c.AI.APIKey))
	log.Printf("[CONFIG] Storage Dir: %s", c.Storage.Dir)
	log.Printf("[CONFIG] Redis Enabled: %t", c.Redis.Enabled)
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] TLS Mode: %s", c.Server.TLS.Mode)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitive(envVar string) bool {
	lower := strings.ToLower(envVar)
	return strings.Contains(lower, "key") || strings.Contains(lower, "url")
}

func configuredOrNot(value string) string {
	if value != "" {
		return "***CONFIGURED***"
	}
	return "***NOT SET***"
}

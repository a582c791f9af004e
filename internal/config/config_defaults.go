package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 0)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.useSystemPrompts", true)

	// AI Configuration - chunk classification
	v.SetDefault("ai.classify.provider", "gemini")
	v.SetDefault("ai.classify.model", "")
	v.SetDefault("ai.classify.timeout", 45*time.Second)
	v.SetDefault("ai.classify.apiKey", "")
	v.SetDefault("ai.classify.maxRetries", 0) // A failed chunk is dropped, not retried
	v.SetDefault("ai.classify.temperature", 0.1) // Extraction, not prose
	v.SetDefault("ai.classify.useSystemPrompts", true)

	v.SetDefault("ai.classify.circuitBreaker.enabled", true)
	v.SetDefault("ai.classify.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.classify.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.classify.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.classify.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.classify.circuitBreaker.failureThreshold", 0.6)

	// Parser Configuration
	v.SetDefault("parser.mode", ParserModeKeyword)
	v.SetDefault("parser.minBlockLength", 40)
	v.SetDefault("parser.previewLimit", 5)
	v.SetDefault("parser.chunkSize", 2000)
	v.SetDefault("parser.requestDelay", 4*time.Second)

	// Database Configuration
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 1)
	v.SetDefault("database.maxConnLifetime", time.Hour)
	v.SetDefault("database.maxConnIdleTime", 30*time.Minute)
	v.SetDefault("database.connectTimeout", 5*time.Second)

	// Redis Configuration
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth Configuration
	v.SetDefault("auth.signingKey", "")
	v.SetDefault("auth.issuer", "medpassport")
	v.SetDefault("auth.sessionTTL", 12*time.Hour)
	v.SetDefault("auth.minPasswordLength", 8)

	// Storage Configuration
	v.SetDefault("storage.dir", "./data/vault")
	v.SetDefault("storage.signedURLTTL", 60*time.Second)
	v.SetDefault("storage.publicBaseURL", "")
	v.SetDefault("storage.maxUploadSize", 20*1024*1024) // 20MB

	v.SetDefault("equivalency.overlayFile", "")

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second) // AI parsing is sequential and throttled
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tls.mode", "disabled") // disabled, server
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")

	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byUser", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.databaseURL", "")
	v.SetDefault("vault.secrets.signingKey", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")
	v.SetDefault("vault.watch.enabled", false)
	v.SetDefault("vault.watch.pollInterval", 5*time.Minute)

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "medpassport")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}

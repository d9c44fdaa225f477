package config

import (
	"time"

	"github.com/rezoom-ai/promptgate/internal/infra/rediscache"
	"github.com/rezoom-ai/promptgate/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Providers []ProviderConfig  `yaml:"providers"`
	Retry     RetryConfig       `yaml:"retry"`
	Registry  RegistryConfig    `yaml:"registry"`
	Database  postgres.Config   `yaml:"database"`
	Redis     rediscache.Config `yaml:"redis"`
	Secret    SecretConfig      `yaml:"secret"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SecretConfig holds key material for sensitive template content.
type SecretConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // empty disables encryption at rest
}

// RegistryConfig holds provider registry settings.
type RegistryConfig struct {
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// RetryConfig holds the retry policy applied to provider calls.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ProviderConfig holds settings for one AI backend.
type ProviderConfig struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"` // "openai" (any OpenAI-compatible API) or "ollama"
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	IsActive bool          `yaml:"is_active"`
}

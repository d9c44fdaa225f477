package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Registry.HealthCheckInterval == 0 {
		cfg.Registry.HealthCheckInterval = 30 * time.Second
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].Kind == "" {
			cfg.Providers[i].Kind = "openai"
		}
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = 30 * time.Second
		}
	}
}

// ActiveProviders returns the provider entries marked active.
func (cfg *AppConfig) ActiveProviders() []ProviderConfig {
	active := make([]ProviderConfig, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

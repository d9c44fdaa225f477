package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
providers:
  - name: openai
    kind: openai
    base_url: https://api.openai.com/v1
    api_key: sk-test
    is_active: true
  - name: local
    kind: ollama
    base_url: http://localhost:11434
    is_active: false
retry:
  max_retries: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.Retry.MaxRetries)
	}

	active := cfg.ActiveProviders()
	if len(active) != 1 || active[0].Name != "openai" {
		t.Errorf("active providers = %v, want [openai]", active)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: openai
    is_active: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Registry.HealthCheckInterval != 30*time.Second {
		t.Errorf("interval = %v, want default 30s", cfg.Registry.HealthCheckInterval)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Retry.MaxDelay != 30*time.Second || cfg.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Providers[0].Kind != "openai" {
		t.Errorf("kind = %q, want default openai", cfg.Providers[0].Kind)
	}
	if cfg.Providers[0].Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want default 30s", cfg.Providers[0].Timeout)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")

	path := writeConfig(t, `
providers:
  - name: openai
    api_key: ${TEST_API_KEY}
    is_active: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-from-env" {
		t.Errorf("api key = %q, want value from environment", cfg.Providers[0].APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

package registry

import (
	"fmt"

	"github.com/rezoom-ai/promptgate/internal/core/config"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/provider"
)

// Factory builds a provider from its configuration. Injected so tests
// and embedders can substitute their own backends.
type Factory func(cfg config.ProviderConfig) (provider.Provider, error)

// DefaultFactory builds the built-in provider kinds.
func DefaultFactory(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Kind {
	case "openai", "":
		return provider.NewOpenAI(cfg.Name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "ollama":
		return provider.NewOllama(cfg.Name, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

package provider

import (
	"time"

	"github.com/pkg/errors"
)

// Config selects and configures a provider adapter.
type Config struct {
	Provider         string
	Model            string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	Timeout          time.Duration
}

// New constructs the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model)
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is required for the openrouter provider")
		}
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.Model, cfg.Timeout), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, errors.Errorf("unsupported provider: %q", cfg.Provider)
	}
}

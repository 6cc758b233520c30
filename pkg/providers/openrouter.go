package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/factkeeper/pkg/config"
)

func init() {
	RegisterFactory(ProviderOpenRouter, newOpenRouterProviderFromConfig, validateOpenRouterConfig)
	RegisterFactory(ProviderGemini, newGeminiProviderFromConfig, validateGeminiConfig)
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) == "" {
		return fmt.Errorf("OpenRouter API key is required (set providers.openrouter.api_key or FACTKEEPER_PROVIDERS_OPENROUTER_API_KEY)")
	}
	return nil
}

func newOpenRouterProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	apiBase := strings.TrimSpace(cfg.Providers.OpenRouter.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenRouterAPIBase
	}
	return NewHTTPProvider(
		strings.TrimSpace(cfg.Providers.OpenRouter.APIKey),
		apiBase,
		cfg.Providers.OpenRouter.Model,
		strings.TrimSpace(cfg.Providers.OpenRouter.Proxy),
	), nil
}

func validateGeminiConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.Gemini.APIKey) == "" {
		return fmt.Errorf("Gemini API key is required (set providers.gemini.api_key or FACTKEEPER_PROVIDERS_GEMINI_API_KEY)")
	}
	return nil
}

func newGeminiProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	return NewGeminiProvider(context.Background(), strings.TrimSpace(cfg.Providers.Gemini.APIKey), cfg.Providers.Gemini.Model)
}

package completion

import (
	"fmt"

	"castingai/internal/config"
)

// New selects a Provider backend by cfg.Provider, the same switch-on-string
// factory shape used by internal/embedding and internal/vectorindex.
func New(cfg config.CompletionConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropic(AnthropicConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("completion: unknown provider %q", cfg.Provider)
	}
}

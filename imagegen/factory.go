package imagegen

import (
	"fmt"

	"lulu_studio/core"
	"lulu_studio/logging"
)

// NewClientFromConfig builds the Client for the configured provider.
// keys carries the Gemini credential; OpenAI and Azure read their key
// from cfg and never offer credential selection.
func NewClientFromConfig(cfg *core.Config, keys *KeyRing, logger *logging.Logger) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	switch provider := cfg.ResolveProvider(); provider {
	case core.ProviderGemini:
		if keys == nil {
			keys = NewKeyRing(cfg.GeminiAPIKey, cfg.AllowKeySelection)
		}
		p, err := NewGeminiProvider(cfg, keys, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case core.ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case core.ProviderAzure:
		p, err := NewAzureProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, core.ErrInvalidProvider(provider)
	}
}

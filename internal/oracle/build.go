package oracle

import (
	"fmt"
	"strings"
)

// New builds a provider-backed oracle from settings.
func New(s Settings) (TextOracle, error) {
	switch strings.ToLower(s.Provider) {
	case "", "ollama":
		o := NewOllama(s.Model, s.BaseURL)
		if s.Timeout > 0 {
			o.client.Timeout = s.Timeout
		}
		return o, nil
	case "openrouter":
		if s.APIKey == "" {
			return nil, fmt.Errorf("openrouter: %w", ErrMissingAPIKey)
		}
		o := NewOpenRouter(s.APIKey, s.BaseURL, s.Model)
		if s.Timeout > 0 {
			o.client.Timeout = s.Timeout
		}
		return o, nil
	case "openai", "deepseek":
		// DeepSeek exposes an OpenAI-compatible endpoint.
		if strings.EqualFold(s.Provider, "deepseek") && s.BaseURL == "" {
			return nil, fmt.Errorf("provider deepseek requires base_url")
		}
		o, err := NewOpenAI(s)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("provider %s not supported", s.Provider)
	}
}

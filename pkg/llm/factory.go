package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewFromProvider creates an LLM client for the named provider.
// Supported providers: "openai" (any OpenAI-compatible endpoint) and
// "anthropic".
func NewFromProvider(provider string, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch provider {
	case "openai":
		return NewClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

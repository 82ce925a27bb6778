// Package llm provides LLM client functionality for OpenAI-compatible and
// Anthropic endpoints.
package llm

import (
	"context"
)

// LLMClient defines the interface for LLM operations consumed by the
// query-resolution engine. It is a single-turn completion contract: no
// streaming, no built-in retry, no rate limiting. Callers own deadlines
// via ctx.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// Complete generates a single-turn text completion.
	Complete(ctx context.Context, prompt string, systemMessage string) (string, error)

	// CreateEmbeddings generates embedding vectors for multiple inputs.
	// Implementations that do not support embeddings return an error.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure implementations satisfy LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)

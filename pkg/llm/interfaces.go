// Package llm provides completion clients for the LLM endpoints used in
// query generation and error fixing.
package llm

import "context"

// Client is the completion interface the rest of the system depends on.
// Use this for dependency injection to enable mocking in tests.
type Client interface {
	// Complete sends a single-turn prompt and returns the text response.
	Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Compile-time interface checks for the provider implementations.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)

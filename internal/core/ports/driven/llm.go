// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides language model generation.
// This is an optional service - when nil, generative metadata extraction and
// feedback generation are unavailable.
//
// Implementations may include:
//   - OpenAI (GPT-4o)
//   - Anthropic (Claude)
//   - Ollama (local models)
//   - Gemini
//   - a fallback chain over several of the above
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// System is an optional system instruction.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// BackendReporter is implemented by LLM services that route to one of several
// backends and can report which one produced the last answer.
type BackendReporter interface {
	// GenerateWithBackend is Generate that also returns the backend label.
	GenerateWithBackend(ctx context.Context, prompt string, opts GenerateOptions) (text, backend string, err error)
}

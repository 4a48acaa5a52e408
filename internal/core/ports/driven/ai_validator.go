package driven

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// AIConfigValidator checks that a configured provider answers before the
// settings are relied on. An unconfigured or nil setting is not an error.
type AIConfigValidator interface {
	// ValidateEmbedding pings the embedding provider.
	// Failures wrap domain.ErrEmbeddingUnavailable.
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error

	// ValidateLLM pings one backend of the language model chain.
	// Failures wrap domain.ErrLLMUnavailable.
	ValidateLLM(ctx context.Context, config *domain.LLMSettings) error
}

package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator pings providers through the same factory the pipeline
// uses, so a setting that validates is one the pipeline can build.
type ConfigValidator struct {
	timeout time.Duration
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithValidationTimeout bounds each validation, including client setup.
func WithValidationTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewConfigValidator creates a validator with a pingTimeout bound.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: pingTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := ValidateEmbeddingConfig(ctx, config); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingUnavailable, config.Provider, err)
	}
	return nil
}

// ValidateLLM validates one LLM backend by pinging it.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, config *domain.LLMSettings) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := ValidateLLMConfig(ctx, config); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrLLMUnavailable, config.Label(), err)
	}
	return nil
}

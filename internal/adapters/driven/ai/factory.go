// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	geminiembed "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/llm/ollama"
	openaillm "github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/llm/openai"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMBackends      []driven.LLMService // In chain order.
	Warnings         []string            // Non-fatal issues; the affected service is left out.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.EmbeddingService != nil {
		errs = append(errs, r.EmbeddingService.Close())
	}
	for _, b := range r.LLMBackends {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

// Initialise builds the embedding service and every configured LLM backend.
// Construction failures become warnings; backends are not pinged so a local
// model that starts later is still usable.
func Initialise(ctx context.Context, settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embedder, err := CreateEmbeddingService(ctx, &settings.Embedding)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("embedding disabled: %v", err))
	case embedder == nil:
		result.Warnings = append(result.Warnings, "embedding provider not configured")
	default:
		result.EmbeddingService = embedder
	}

	for i := range settings.LLM.Backends {
		b := &settings.LLM.Backends[i]
		if !b.IsConfigured() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("LLM backend %s skipped: not configured", b.Label()))
			continue
		}
		svc, err := CreateLLMService(ctx, b, settings.LLM.Timeout)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("LLM backend %s skipped: %v", b.Label(), err))
			continue
		}
		result.LLMBackends = append(result.LLMBackends, svc)
	}

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'asp-agent settings' to fix", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'asp-agent settings' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(pingCtx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(ctx, settings, 0)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(pingCtx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured. A zero timeout keeps the
// adapter default.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings, timeout time.Duration) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

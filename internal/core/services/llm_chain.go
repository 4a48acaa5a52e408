package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure LLMChain implements the interfaces.
var (
	_ driven.LLMService      = (*LLMChain)(nil)
	_ driven.BackendReporter = (*LLMChain)(nil)
)

// LLMChain tries an ordered list of language model backends until one answers.
// Each attempt gets its own timeout; each backend gets a fixed retry budget.
type LLMChain struct {
	backends   []driven.LLMService
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// LLMChainOption configures an LLMChain.
type LLMChainOption func(*LLMChain)

// WithLLMTimeout sets the per-attempt timeout.
func WithLLMTimeout(d time.Duration) LLMChainOption {
	return func(c *LLMChain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLLMRetries sets how many times a failing backend is retried
// before moving on. Values above the default are capped.
func WithLLMRetries(n int) LLMChainOption {
	return func(c *LLMChain) {
		if n >= 0 && n <= domain.DefaultMaxRetries {
			c.maxRetries = n
		}
	}
}

// WithLLMBackoff sets the base delay between retries.
func WithLLMBackoff(d time.Duration) LLMChainOption {
	return func(c *LLMChain) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// NewLLMChain creates a chain over backends, tried in order. Nil backends are ignored.
func NewLLMChain(backends []driven.LLMService, opts ...LLMChainOption) *LLMChain {
	c := &LLMChain{
		timeout:    domain.DefaultLLMTimeout,
		maxRetries: domain.DefaultMaxRetries,
		backoff:    500 * time.Millisecond,
	}
	for _, b := range backends {
		if b != nil {
			c.backends = append(c.backends, b)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of backends in the chain.
func (c *LLMChain) Len() int {
	return len(c.backends)
}

// Generate returns the first successful completion.
func (c *LLMChain) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	text, _, err := c.GenerateWithBackend(ctx, prompt, opts)
	return text, err
}

// GenerateWithBackend returns the first successful completion and the
// model name of the backend that produced it.
func (c *LLMChain) GenerateWithBackend(
	ctx context.Context, prompt string, opts driven.GenerateOptions,
) (text, backend string, err error) {
	if len(c.backends) == 0 {
		return "", "", domain.ErrLLMUnavailable
	}

	var errs []error
	for _, b := range c.backends {
		text, err := c.try(ctx, b, prompt, opts)
		if err == nil {
			return text, b.ModelName(), nil
		}
		logger.Warn("LLM backend %s failed: %v", b.ModelName(), err)
		errs = append(errs, fmt.Errorf("%s: %w", b.ModelName(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return "", "", fmt.Errorf("%w: %w", domain.ErrLLMChainExhausted, errors.Join(errs...))
}

// try calls one backend with up to maxRetries retries.
func (c *LLMChain) try(ctx context.Context, b driven.LLMService, prompt string, opts driven.GenerateOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retrying %s (attempt %d)", b.ModelName(), attempt+1)
			if err := sleepContext(ctx, c.backoff*time.Duration(attempt)); err != nil {
				return "", err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := b.Generate(callCtx, prompt, opts)
		cancel()

		if err == nil {
			if strings.TrimSpace(text) == "" {
				lastErr = errors.New("empty response")
				continue
			}
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

// ModelName describes the chain by its backends.
func (c *LLMChain) ModelName() string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.ModelName())
	}
	return strings.Join(names, " -> ")
}

// Ping succeeds when at least one backend responds.
func (c *LLMChain) Ping(ctx context.Context) error {
	if len(c.backends) == 0 {
		return domain.ErrLLMUnavailable
	}
	var errs []error
	for _, b := range c.backends {
		if err := b.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.ModelName(), err))
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrLLMChainExhausted, errors.Join(errs...))
}

// Close closes every backend.
func (c *LLMChain) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

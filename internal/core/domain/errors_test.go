package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrExtractionFailure", ErrExtractionFailure},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrExternalServiceTimeout", ErrExternalServiceTimeout},
		{"ErrExternalServiceUnavailable", ErrExternalServiceUnavailable},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrLLMChainExhausted", ErrLLMChainExhausted},
		{"ErrVectorStoreUnavailable", ErrVectorStoreUnavailable},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrOrphanVector", ErrOrphanVector},
		{"ErrReindexRequired", ErrReindexRequired},
		{"ErrRateLimited", ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("pubmed search: %w", ErrExternalServiceTimeout)
	assert.True(t, errors.Is(wrapped, ErrExternalServiceTimeout))
	assert.False(t, errors.Is(wrapped, ErrLLMChainExhausted))

	joined := fmt.Errorf("%w: %w", ErrLLMChainExhausted, errors.Join(errors.New("openai: 500"), errors.New("ollama: refused")))
	assert.True(t, errors.Is(joined, ErrLLMChainExhausted))
	assert.Contains(t, joined.Error(), "ollama: refused")
}

func TestIngestionError(t *testing.T) {
	cause := fmt.Errorf("embed chunk 3: %w", ErrEmbeddingUnavailable)
	err := &IngestionError{Path: "/papers/a.pdf", Stage: StageEmbed, Err: cause}

	assert.Equal(t, "ingest /papers/a.pdf: embed: embed chunk 3: embedding service unavailable", err.Error())
	assert.True(t, errors.Is(err, ErrEmbeddingUnavailable))

	var ingestErr *IngestionError
	assert.True(t, errors.As(fmt.Errorf("batch: %w", err), &ingestErr))
	assert.Equal(t, StageEmbed, ingestErr.Stage)
}

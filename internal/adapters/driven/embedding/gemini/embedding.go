// Package gemini provides an embedding service adapter using the Google
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// maxBatch is the largest batch the API accepts in one call.
const maxBatch = 100

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model (default: text-embedding-004).
	Model string

	// ClientOptions are appended to the client options, mainly for tests.
	ClientOptions []option.ClientOption
}

// EmbeddingService generates embeddings with the Gemini batch endpoint.
type EmbeddingService struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	modelName  string
	dimensions int
}

// NewEmbeddingService creates a Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	dims := domain.EmbeddingDimensions()[cfg.Model]
	if dims == 0 {
		dims = 768
	}

	model := client.EmbeddingModel(cfg.Model)
	model.TaskType = genai.TaskTypeRetrievalDocument

	return &EmbeddingService{
		client:     client,
		model:      model,
		modelName:  cfg.Model,
		dimensions: dims,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts through BatchEmbedContents, splitting inputs
// larger than the API batch limit.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		batch := s.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := s.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini: embed batch: %w: %w", domain.ErrExternalServiceUnavailable, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			if e == nil || len(e.Values) != s.dimensions {
				return nil, fmt.Errorf("gemini: unexpected embedding size: %w", domain.ErrDimensionMismatch)
			}
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.modelName
}

// Ping lists one model to verify the key.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return ping(ctx, s.client)
}

// Close releases the client connection.
func (s *EmbeddingService) Close() error {
	return s.client.Close()
}

func ping(ctx context.Context, client *genai.Client) error {
	it := client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

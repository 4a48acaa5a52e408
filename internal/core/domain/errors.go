package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Pipeline Errors.

	// ErrExtractionFailure indicates a metadata extraction tier produced nothing usable.
	// It is never fatal: the extractor escalates or falls back to filename defaults.
	ErrExtractionFailure = errors.New("metadata extraction failed")

	// ErrEmbeddingUnavailable indicates the embedding backend is not configured or unreachable.
	// Fatal for ingestion of new documents; degrades retrieval to the external tier.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrExternalServiceTimeout indicates an external backend exhausted its
	// timeout and retry budget. The retriever skips the tier.
	ErrExternalServiceTimeout = errors.New("external service timeout")

	// ErrExternalServiceUnavailable indicates an external backend is not configured.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrLLMUnavailable indicates no language model backend is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrLLMChainExhausted indicates every backend in the language model chain failed.
	// This is the only query-time failure surfaced to the caller.
	ErrLLMChainExhausted = errors.New("all language model backends failed")

	// ErrVectorStoreUnavailable indicates the vector store is not configured.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector does not match its collection's dimensionality.
	// An embedding model change requires a full reindex.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrOrphanVector indicates an attempt to store a vector without text or metadata.
	ErrOrphanVector = errors.New("vector has no owning text or metadata")

	// ErrReindexRequired indicates the configured embedding model differs from
	// the one a collection was built with.
	ErrReindexRequired = errors.New("embedding model changed: full reindex required")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// IngestionStage names the step of the ingestion pipeline that failed.
type IngestionStage string

// Ingestion stages.
const (
	StageRead    IngestionStage = "read"
	StageExtract IngestionStage = "extract"
	StageChunk   IngestionStage = "chunk"
	StageEmbed   IngestionStage = "embed"
	StageStore   IngestionStage = "store"
	StageMove    IngestionStage = "move"
)

// IngestionError records why a single document could not be ingested.
// Ingestion failures are logged and recorded, never silently dropped.
type IngestionError struct {
	Path  string
	Stage IngestionStage
	Err   error
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Path, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IngestionError) Unwrap() error {
	return e.Err
}

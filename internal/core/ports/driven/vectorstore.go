package driven

import (
	"context"
	"fmt"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// Collection names shared by the vector store adapters and services.
const (
	CollectionLiterature        = "literature"
	CollectionExpertCorrections = "expert_corrections"
	CollectionExpertExemplars   = "expert_exemplars"
)

// Metadata keys every store understands.
const (
	// MetaDocumentID groups entries belonging to one document.
	MetaDocumentID = "document_id"

	// MetaFilenameKey holds the normalised filename used for identity checks.
	MetaFilenameKey = "filename_key"

	// MetaExternalID holds the bibliographic identifier (PubMed ID).
	MetaExternalID = "pmid"
)

// VectorEntry is one stored vector with its text and flat metadata.
type VectorEntry struct {
	// ID is unique within the collection.
	ID string

	// Vector is the embedding; its length must equal the collection dimension.
	Vector []float32

	// Text is the stored content. Required.
	Text string

	// Metadata is required; it must carry at least a document_id key.
	Metadata map[string]string
}

// VectorMatch is a query hit.
type VectorMatch struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float64
}

// VectorStore is a persistent, named collection of vectors searched by cosine
// similarity. Upserting an entry with an existing ID replaces it.
type VectorStore interface {
	// Name returns the collection name.
	Name() string

	// Dimensions returns the fixed vector dimension of the collection.
	Dimensions() int

	// Upsert stores entries. Entries with empty text or metadata are rejected
	// with ErrOrphanVector; wrong-length vectors with ErrDimensionMismatch.
	Upsert(ctx context.Context, entries []VectorEntry) error

	// Query returns up to n nearest entries, most similar first.
	// A non-empty filter restricts matches to entries whose metadata equals
	// every filter value.
	Query(ctx context.Context, vector []float32, n int, filter map[string]string) ([]VectorMatch, error)

	// Count returns the number of stored entries.
	Count() int

	// HasDocument reports whether any entry belongs to a document with the
	// given filename or external identifier.
	HasDocument(ctx context.Context, identity domain.DocumentIdentity) (bool, error)

	// DeleteDocument removes every entry of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Reset removes every entry of the collection.
	Reset(ctx context.Context) error
}

// ValidateEntries checks the no-orphan and dimension invariants shared by
// every store. dims of zero accepts any consistent length.
func ValidateEntries(entries []VectorEntry, dims int) error {
	for i := range entries {
		e := &entries[i]
		if e.ID == "" || e.Text == "" || len(e.Metadata) == 0 || e.Metadata[MetaDocumentID] == "" {
			return fmt.Errorf("entry %q: %w", e.ID, domain.ErrOrphanVector)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %q: empty vector: %w", e.ID, domain.ErrDimensionMismatch)
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("entry %q: got %d dimensions, collection has %d: %w",
				e.ID, len(e.Vector), dims, domain.ErrDimensionMismatch)
		}
	}
	return nil
}

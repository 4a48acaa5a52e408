package driven

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// IngestionLedger persists what has been indexed, what failed, and which
// embedding model each vector collection was built with.
type IngestionLedger interface {
	// RecordDocument stores or replaces the record of an indexed document.
	RecordDocument(ctx context.Context, record domain.IngestionRecord) error

	// GetDocument returns the record for a document ID.
	// Returns domain.ErrNotFound if it was never indexed.
	GetDocument(ctx context.Context, documentID string) (*domain.IngestionRecord, error)

	// ListNeedsReview returns documents whose metadata quality is low.
	ListNeedsReview(ctx context.Context) ([]domain.IngestionRecord, error)

	// RecordFailure stores the latest failure for a path.
	RecordFailure(ctx context.Context, failure domain.IngestionFailure) error

	// ClearFailure removes the failure record for a path.
	ClearFailure(ctx context.Context, path string) error

	// ListFailures returns all recorded failures, most recent first.
	ListFailures(ctx context.Context) ([]domain.IngestionFailure, error)

	// GetCollection returns the registry entry for a vector collection.
	// Returns domain.ErrNotFound if the collection is not registered.
	GetCollection(ctx context.Context, name string) (*domain.CollectionInfo, error)

	// SaveCollection registers or updates a vector collection.
	SaveCollection(ctx context.Context, info domain.CollectionInfo) error

	// ResetDocuments removes every document and failure record.
	ResetDocuments(ctx context.Context) error

	// Stats summarises the ledger.
	Stats(ctx context.Context) (domain.LedgerStats, error)
}

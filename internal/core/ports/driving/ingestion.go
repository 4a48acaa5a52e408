package driving

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// IngestionService indexes source documents into the literature store.
type IngestionService interface {
	// IngestFile extracts, chunks, embeds and stores one file.
	// A file whose filename or external identifier is already indexed is skipped.
	IngestFile(ctx context.Context, path string) domain.IngestResult

	// IngestSource ingests every file the source lists, one at a time, and
	// marks indexed and already-indexed files as processed.
	IngestSource(ctx context.Context, src driven.DocumentSource) (domain.IngestReport, error)

	// Reindex wipes the literature collection and ledger, then ingests src.
	Reindex(ctx context.Context, src driven.DocumentSource) (domain.IngestReport, error)

	// Watch ingests files as they arrive until ctx is cancelled.
	// onResult is called after each file.
	Watch(ctx context.Context, src driven.DocumentSource, onResult func(domain.IngestResult)) error

	// Stats summarises the ledger and collection sizes.
	Stats(ctx context.Context) (IngestionStats, error)

	// NeedsReview lists documents whose metadata fell back to filename defaults.
	NeedsReview(ctx context.Context) ([]domain.IngestionRecord, error)

	// Document returns the ledger record of an indexed document.
	Document(ctx context.Context, documentID string) (*domain.IngestionRecord, error)

	// Failures lists files that could not be indexed.
	Failures(ctx context.Context) ([]domain.IngestionFailure, error)
}

// IngestionStats is the combined ledger and collection summary.
type IngestionStats struct {
	Ledger      domain.LedgerStats
	Collections map[string]int
	Model       string
}

package domain

import "time"

// IngestionRecord is the ledger entry of an indexed document.
type IngestionRecord struct {
	Metadata PaperMetadata

	// Path is where the file was read from.
	Path string

	// ChunkCount is the number of chunks stored for the document.
	ChunkCount int

	// EmbeddingModel is the model used to embed the chunks.
	EmbeddingModel string

	IngestedAt time.Time
}

// IngestionFailure is the ledger entry of a file that could not be indexed.
type IngestionFailure struct {
	Path     string
	Stage    IngestionStage
	Error    string
	FailedAt time.Time
}

// CollectionInfo records the embedding model a vector collection was built with.
type CollectionInfo struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
	UpdatedAt      time.Time
}

// Matches returns true if the collection was built with the given model.
func (c CollectionInfo) Matches(model string, dims int) bool {
	return c.EmbeddingModel == model && c.Dimensions == dims
}

// LedgerStats summarises the ingestion ledger.
type LedgerStats struct {
	Documents   int
	Chunks      int
	NeedsReview int
	Failures    int
	ByMethod    map[ExtractionMethod]int
}

// IngestStatus is the outcome of ingesting a single file.
type IngestStatus string

// Ingest statuses.
const (
	IngestIndexed IngestStatus = "indexed"
	IngestSkipped IngestStatus = "skipped"
	IngestFailed  IngestStatus = "failed"
)

// IngestResult reports what happened to one file.
type IngestResult struct {
	Path       string
	Status     IngestStatus
	DocumentID string
	Chunks     int
	Metadata   *PaperMetadata
	Err        error
}

// IngestReport summarises a directory ingestion run.
type IngestReport struct {
	Results []IngestResult
}

// Count returns the number of results with the given status.
func (r IngestReport) Count(status IngestStatus) int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Status == status {
			n++
		}
	}
	return n
}

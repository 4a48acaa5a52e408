package driven

import "context"

// DocumentSource is a directory of documents awaiting ingestion.
type DocumentSource interface {
	// Root returns the directory being ingested.
	Root() string

	// Scan lists supported files awaiting ingestion in a stable order.
	// Hidden files and the processed directory are skipped.
	Scan(ctx context.Context) ([]string, error)

	// ScanProcessed lists files already moved to the processed directory.
	// Used to rebuild the index from scratch.
	ScanProcessed(ctx context.Context) ([]string, error)

	// MarkProcessed moves an ingested file out of the input set and returns
	// its new path.
	MarkProcessed(ctx context.Context, path string) (string, error)

	// Watch emits paths of supported files as they appear or change.
	// Both channels close when ctx is cancelled.
	Watch(ctx context.Context) (<-chan string, <-chan error, error)

	// Close releases watcher resources.
	Close() error
}

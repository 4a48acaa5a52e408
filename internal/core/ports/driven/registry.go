package driven

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// ReaderRegistry selects the appropriate DocumentReader for a file.
type ReaderRegistry interface {
	// Read dispatches to the reader registered for the file's extension.
	// Returns domain.ErrUnsupportedType when no reader matches.
	Read(ctx context.Context, path string) (*domain.SourceDocument, error)

	// Register adds a reader to the registry.
	Register(reader DocumentReader)

	// Supports reports whether a reader is registered for the file.
	Supports(path string) bool
}

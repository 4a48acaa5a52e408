package driven

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// DocumentReader turns a source file into text plus embedded properties.
// Each reader handles specific file extensions (e.g. .pdf, .txt).
type DocumentReader interface {
	// SupportedExtensions returns the lower-case extensions this reader handles.
	SupportedExtensions() []string

	// Read extracts the full text, first-page text and embedded properties.
	Read(ctx context.Context, path string) (*domain.SourceDocument, error)
}

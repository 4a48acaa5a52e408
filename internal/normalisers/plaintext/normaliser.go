// Package plaintext reads plain text documents.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers"
)

// Ensure Reader implements the interface.
var _ driven.DocumentReader = (*Reader)(nil)

// Reader handles plain text documents. Text files carry no embedded
// properties, so metadata extraction starts at the parsed tier.
type Reader struct{}

// New creates a new plain text reader.
func New() *Reader {
	return &Reader{}
}

// SupportedExtensions returns the extensions this reader handles.
func (r *Reader) SupportedExtensions() []string {
	return []string{".txt", ".text"}
}

// Read loads the file as UTF-8 text.
func (r *Reader) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc := domain.NewSourceDocument(path)
	doc.Text = strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrExtractionFailure, doc.Filename)
	}
	doc.FirstPages = normalisers.FirstPages(doc.Text)
	return doc, nil
}

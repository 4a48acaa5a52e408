package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ReaderRegistry = (*Registry)(nil)

// Registry dispatches files to readers by extension.
// A later registration for the same extension replaces the earlier one.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]driven.DocumentReader
}

// NewRegistry creates a registry with the given readers.
func NewRegistry(readers ...driven.DocumentReader) *Registry {
	r := &Registry{readers: make(map[string]driven.DocumentReader)}
	for _, reader := range readers {
		r.Register(reader)
	}
	return r
}

// Register adds a reader for each of its extensions.
func (r *Registry) Register(reader driven.DocumentReader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range reader.SupportedExtensions() {
		r.readers[normaliseExt(ext)] = reader
	}
}

// Supports reports whether a reader is registered for path's extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.lookup(path)
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Read reads path with the reader registered for its extension.
func (r *Registry) Read(ctx context.Context, path string) (*domain.SourceDocument, error) {
	reader, ok := r.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(path))
	}
	return reader.Read(ctx, path)
}

func (r *Registry) lookup(path string) (driven.DocumentReader, bool) {
	ext := normaliseExt(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reader, ok := r.readers[ext]
	return reader, ok
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

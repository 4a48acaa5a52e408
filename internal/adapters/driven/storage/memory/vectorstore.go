package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory collection searched by brute-force cosine
// similarity. It is used for tests and for dry runs that should not touch disk.
type VectorStore struct {
	mu      sync.RWMutex
	name    string
	dims    int
	entries map[string]driven.VectorEntry
}

// NewVectorStore creates an empty collection. dims of zero adopts the
// dimension of the first stored vector.
func NewVectorStore(name string, dims int) *VectorStore {
	return &VectorStore{
		name:    name,
		dims:    dims,
		entries: make(map[string]driven.VectorEntry),
	}
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.name
}

// Dimensions returns the collection's vector dimension.
func (s *VectorStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Upsert stores entries, replacing any with the same ID.
// The batch is validated before anything is written.
func (s *VectorStore) Upsert(_ context.Context, entries []driven.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := driven.ValidateEntries(entries, s.dims); err != nil {
		return err
	}
	if s.dims == 0 && len(entries) > 0 {
		s.dims = len(entries[0].Vector)
	}
	for i := range entries {
		e := entries[i]
		e.Vector = normalise(e.Vector)
		e.Metadata = copyMap(e.Metadata)
		s.entries[e.ID] = e
	}
	return nil
}

// Query returns up to n entries most similar to vector.
func (s *VectorStore) Query(
	_ context.Context, vector []float32, n int, filter map[string]string,
) ([]driven.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if s.dims != 0 && len(vector) != s.dims {
		return nil, domain.ErrDimensionMismatch
	}

	query := normalise(vector)
	matches := make([]driven.VectorMatch, 0, len(s.entries))
	for _, e := range s.entries {
		if !matchesFilter(e.Metadata, filter) {
			continue
		}
		matches = append(matches, driven.VectorMatch{
			ID:         e.ID,
			Text:       e.Text,
			Metadata:   copyMap(e.Metadata),
			Similarity: dot(e.Vector, query),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// Count returns the number of entries.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HasDocument reports whether an entry carries the identity's filename or external ID.
func (s *VectorStore) HasDocument(_ context.Context, identity domain.DocumentIdentity) (bool, error) {
	filenameKey := domain.NormaliseFilename(identity.Filename)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if filenameKey != "" && e.Metadata[driven.MetaFilenameKey] == filenameKey {
			return true, nil
		}
		if identity.ExternalID != "" && e.Metadata[driven.MetaExternalID] == identity.ExternalID {
			return true, nil
		}
	}
	return false, nil
}

// DeleteDocument removes every entry of a document.
func (s *VectorStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.Metadata[driven.MetaDocumentID] == documentID {
			delete(s.entries, id)
		}
	}
	return nil
}

// Reset removes every entry.
func (s *VectorStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]driven.VectorEntry)
	return nil
}

func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

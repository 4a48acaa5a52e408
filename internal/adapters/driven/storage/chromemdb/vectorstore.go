// Package chromemdb provides persistent vector collections backed by chromem-go.
package chromemdb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

var collectionMetadata = map[string]string{"hnsw:space": "cosine"}

// DB is a directory of persistent collections.
type DB struct {
	db   *chromem.DB
	path string
}

// Open loads or creates the database at path. An empty path keeps
// everything in memory.
func Open(path string) (*DB, error) {
	if path == "" {
		return &DB{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrVectorStoreUnavailable, path, err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database directory.
func (d *DB) Path() string {
	return d.path
}

// Collection opens the named collection with a fixed dimension. A collection
// holding vectors of another dimension fails with ErrReindexRequired.
func (d *DB) Collection(ctx context.Context, name string, dims int) (*VectorStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("collection %s: dimension must be positive: %w", name, domain.ErrInvalidInput)
	}
	c, err := d.db.GetOrCreateCollection(name, collectionMetadata, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %w", domain.ErrVectorStoreUnavailable, name, err)
	}
	s := &VectorStore{db: d.db, collection: c, name: name, dims: dims}
	if err := s.checkDimensions(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Opened collection %s (%d entries, %d dims)", name, c.Count(), dims)
	return s, nil
}

// DropCollection deletes the named collection and its vectors.
func (d *DB) DropCollection(name string) error {
	if err := d.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("%w: drop %s: %w", domain.ErrVectorStoreUnavailable, name, err)
	}
	logger.Info("Dropped collection %s", name)
	return nil
}

// VectorStore is one chromem collection.
type VectorStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dims       int
}

// checkDimensions compares a stored vector against the configured dimension.
func (s *VectorStore) checkDimensions(ctx context.Context) error {
	if s.collection.Count() == 0 {
		return nil
	}
	res, err := s.collection.QueryEmbedding(ctx, unitVector(s.dims), 1, nil, nil)
	if err != nil || (len(res) > 0 && len(res[0].Embedding) != s.dims) {
		return fmt.Errorf("collection %s was built with a different embedding model: %w", s.name, domain.ErrReindexRequired)
	}
	return nil
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.name
}

// Dimensions returns the collection's vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dims
}

// Upsert validates the batch and writes it. Existing IDs are replaced.
func (s *VectorStore) Upsert(ctx context.Context, entries []driven.VectorEntry) error {
	if err := driven.ValidateEntries(entries, s.dims); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	metadatas := make([]map[string]string, len(entries))
	contents := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		vectors[i] = normalise(e.Vector)
		metadatas[i] = copyMap(e.Metadata)
		contents[i] = e.Text
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.collection.Add(ctx, ids, vectors, metadatas, contents); err != nil {
		return fmt.Errorf("%w: upsert into %s: %w", domain.ErrVectorStoreUnavailable, s.name, err)
	}
	return nil
}

// Query returns up to n entries most similar to vector.
func (s *VectorStore) Query(
	ctx context.Context, vector []float32, n int, filter map[string]string,
) ([]driven.VectorMatch, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, collection has %d: %w",
			len(vector), s.dims, domain.ErrDimensionMismatch)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem rejects n above the collection size.
	n = min(n, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}
	results, err := s.collection.QueryEmbedding(ctx, normalise(vector), n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrVectorStoreUnavailable, s.name, err)
	}

	matches := make([]driven.VectorMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, driven.VectorMatch{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   copyMap(r.Metadata),
			Similarity: float64(r.Similarity),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// Count returns the number of entries.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

// HasDocument looks the identity up through metadata filters.
func (s *VectorStore) HasDocument(ctx context.Context, identity domain.DocumentIdentity) (bool, error) {
	var filters []map[string]string
	if key := domain.NormaliseFilename(identity.Filename); key != "" {
		filters = append(filters, map[string]string{driven.MetaFilenameKey: key})
	}
	if identity.ExternalID != "" {
		filters = append(filters, map[string]string{driven.MetaExternalID: identity.ExternalID})
	}

	anyVector := unitVector(s.dims)
	for _, f := range filters {
		matches, err := s.Query(ctx, anyVector, 1, f)
		if err != nil {
			return false, err
		}
		if len(matches) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DeleteDocument removes every entry of a document.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("delete document: %w", domain.ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.collection.Delete(ctx, map[string]string{driven.MetaDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("%w: delete %s from %s: %w", domain.ErrVectorStoreUnavailable, documentID, s.name, err)
	}
	return nil
}

// Reset drops and recreates the collection.
func (s *VectorStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("%w: reset %s: %w", domain.ErrVectorStoreUnavailable, s.name, err)
	}
	c, err := s.db.CreateCollection(s.name, collectionMetadata, nil)
	if err != nil {
		return fmt.Errorf("%w: recreate %s: %w", domain.ErrVectorStoreUnavailable, s.name, err)
	}
	s.collection = c
	logger.Info("Reset collection %s", s.name)
	return nil
}

func unitVector(dims int) []float32 {
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = 1
	}
	return v
}

// normalise scales v to unit length; chromem compares by dot product.
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

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure Ledger implements the interface.
var _ driven.IngestionLedger = (*Ledger)(nil)

// Ledger is an in-memory implementation of driven.IngestionLedger for testing.
type Ledger struct {
	mu          sync.RWMutex
	documents   map[string]domain.IngestionRecord
	failures    map[string]domain.IngestionFailure
	collections map[string]domain.CollectionInfo
}

// NewLedger creates a new in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		documents:   make(map[string]domain.IngestionRecord),
		failures:    make(map[string]domain.IngestionFailure),
		collections: make(map[string]domain.CollectionInfo),
	}
}

// RecordDocument stores or replaces a document record.
func (l *Ledger) RecordDocument(_ context.Context, record domain.IngestionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.documents[record.Metadata.DocumentID] = record
	return nil
}

// GetDocument retrieves a document record.
func (l *Ledger) GetDocument(_ context.Context, documentID string) (*domain.IngestionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.documents[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// ListNeedsReview returns documents flagged for manual review, by filename.
func (l *Ledger) ListNeedsReview(_ context.Context) ([]domain.IngestionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.IngestionRecord
	for _, r := range l.documents {
		if r.Metadata.QualityFlag.NeedsReview() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Filename < out[j].Metadata.Filename })
	return out, nil
}

// RecordFailure stores the latest failure for a path.
func (l *Ledger) RecordFailure(_ context.Context, failure domain.IngestionFailure) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[failure.Path] = failure
	return nil
}

// ClearFailure removes the failure recorded for a path.
func (l *Ledger) ClearFailure(_ context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, path)
	return nil
}

// ListFailures returns recorded failures, by path.
func (l *Ledger) ListFailures(_ context.Context) ([]domain.IngestionFailure, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.IngestionFailure, 0, len(l.failures))
	for _, f := range l.failures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// GetCollection returns the recorded model of a collection.
func (l *Ledger) GetCollection(_ context.Context, name string) (*domain.CollectionInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &info, nil
}

// SaveCollection records the model of a collection.
func (l *Ledger) SaveCollection(_ context.Context, info domain.CollectionInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collections[info.Name] = info
	return nil
}

// ResetDocuments removes every document and failure record.
func (l *Ledger) ResetDocuments(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.documents = make(map[string]domain.IngestionRecord)
	l.failures = make(map[string]domain.IngestionFailure)
	return nil
}

// Stats summarises the ledger.
func (l *Ledger) Stats(_ context.Context) (domain.LedgerStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stats := domain.LedgerStats{
		Documents: len(l.documents),
		Failures:  len(l.failures),
		ByMethod:  make(map[domain.ExtractionMethod]int),
	}
	for _, r := range l.documents {
		stats.Chunks += r.ChunkCount
		stats.ByMethod[r.Metadata.ExtractionMethod]++
		if r.Metadata.QualityFlag.NeedsReview() {
			stats.NeedsReview++
		}
	}
	return stats, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// ledger implements driven.IngestionLedger.
type ledger struct {
	db *sql.DB
}

var _ driven.IngestionLedger = (*ledger)(nil)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RecordDocument stores or replaces the record of an indexed document.
func (l *ledger) RecordDocument(ctx context.Context, record domain.IngestionRecord) error {
	meta := record.Metadata
	if meta.DocumentID == "" {
		return fmt.Errorf("recording document: %w", domain.ErrInvalidInput)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, filename, path, title, external_id, extraction_method,
			quality_flag, chunk_count, embedding_model, metadata, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			filename = excluded.filename,
			path = excluded.path,
			title = excluded.title,
			external_id = excluded.external_id,
			extraction_method = excluded.extraction_method,
			quality_flag = excluded.quality_flag,
			chunk_count = excluded.chunk_count,
			embedding_model = excluded.embedding_model,
			metadata = excluded.metadata,
			ingested_at = excluded.ingested_at
	`, meta.DocumentID, meta.Filename, record.Path, meta.Title, meta.ExternalID,
		string(meta.ExtractionMethod), string(meta.QualityFlag), record.ChunkCount,
		record.EmbeddingModel, string(metaJSON), formatTime(record.IngestedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const documentColumns = `path, chunk_count, embedding_model, metadata, ingested_at`

func scanDocument(scan func(dest ...any) error) (*domain.IngestionRecord, error) {
	var (
		record     domain.IngestionRecord
		metaJSON   string
		ingestedAt string
	)
	if err := scan(&record.Path, &record.ChunkCount, &record.EmbeddingModel, &metaJSON, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &record.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	record.IngestedAt = parseTime(ingestedAt)
	return &record, nil
}

// GetDocument returns the record for a document ID.
func (l *ledger) GetDocument(ctx context.Context, documentID string) (*domain.IngestionRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_id = ?`, documentID)
	return scanDocument(row.Scan)
}

// ListNeedsReview returns low-quality documents ordered by filename.
func (l *ledger) ListNeedsReview(ctx context.Context) ([]domain.IngestionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE quality_flag = ? ORDER BY filename`,
		string(domain.QualityLow))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestionRecord
	for rows.Next() {
		record, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

// RecordFailure stores the latest failure for a path.
func (l *ledger) RecordFailure(ctx context.Context, failure domain.IngestionFailure) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ingestion_failures (path, stage, error, failed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			stage = excluded.stage,
			error = excluded.error,
			failed_at = excluded.failed_at
	`, failure.Path, string(failure.Stage), failure.Error, formatTime(failure.FailedAt))
	if err != nil {
		return fmt.Errorf("saving failure: %w", err)
	}
	return nil
}

// ClearFailure removes the failure record for a path.
func (l *ledger) ClearFailure(ctx context.Context, path string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM ingestion_failures WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clearing failure: %w", err)
	}
	return nil
}

// ListFailures returns all recorded failures, most recent first.
func (l *ledger) ListFailures(ctx context.Context) ([]domain.IngestionFailure, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT path, stage, error, failed_at FROM ingestion_failures ORDER BY failed_at DESC, path`)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestionFailure
	for rows.Next() {
		var (
			f        domain.IngestionFailure
			stage    string
			failedAt string
		)
		if err := rows.Scan(&f.Path, &stage, &f.Error, &failedAt); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		f.Stage = domain.IngestionStage(stage)
		f.FailedAt = parseTime(failedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetCollection returns the registry entry for a vector collection.
func (l *ledger) GetCollection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT name, embedding_model, dimensions, updated_at FROM collections WHERE name = ?`, name)

	var (
		info      domain.CollectionInfo
		updatedAt string
	)
	if err := row.Scan(&info.Name, &info.EmbeddingModel, &info.Dimensions, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	info.UpdatedAt = parseTime(updatedAt)
	return &info, nil
}

// SaveCollection registers or updates a vector collection.
func (l *ledger) SaveCollection(ctx context.Context, info domain.CollectionInfo) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO collections (name, embedding_model, dimensions, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			dimensions = excluded.dimensions,
			updated_at = excluded.updated_at
	`, info.Name, info.EmbeddingModel, info.Dimensions, formatTime(info.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// ResetDocuments removes every document and failure record.
func (l *ledger) ResetDocuments(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"documents", "ingestion_failures"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Stats summarises the ledger.
func (l *ledger) Stats(ctx context.Context) (domain.LedgerStats, error) {
	stats := domain.LedgerStats{ByMethod: make(map[domain.ExtractionMethod]int)}

	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0),
			COALESCE(SUM(CASE WHEN quality_flag = ? THEN 1 ELSE 0 END), 0)
		FROM documents
	`, string(domain.QualityLow))
	if err := row.Scan(&stats.Documents, &stats.Chunks, &stats.NeedsReview); err != nil {
		return stats, fmt.Errorf("counting documents: %w", err)
	}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingestion_failures`).Scan(&stats.Failures); err != nil {
		return stats, fmt.Errorf("counting failures: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `SELECT extraction_method, COUNT(*) FROM documents GROUP BY extraction_method`)
	if err != nil {
		return stats, fmt.Errorf("grouping documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			method string
			count  int
		)
		if err := rows.Scan(&method, &count); err != nil {
			return stats, fmt.Errorf("scanning method count: %w", err)
		}
		stats.ByMethod[domain.ExtractionMethod(method)] = count
	}
	return stats, rows.Err()
}

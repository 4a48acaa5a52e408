package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService indexes source documents into the literature store:
// read, extract metadata, chunk, embed, store, record.
type IngestionService struct {
	readers   driven.ReaderRegistry
	extractor *MetadataExtractor
	pipeline  driven.PostProcessorPipeline
	embedder  driven.EmbeddingService
	store     driven.VectorStore
	ledger    driven.IngestionLedger

	batchSize     int
	moveProcessed bool
	now           func() time.Time

	locks keyedMutex
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithEmbeddingBatchSize sets how many chunks are embedded per request.
func WithEmbeddingBatchSize(n int) IngestionOption {
	return func(s *IngestionService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMoveProcessed controls whether indexed files are moved out of the source.
func WithMoveProcessed(move bool) IngestionOption {
	return func(s *IngestionService) {
		s.moveProcessed = move
	}
}

// NewIngestionService creates an ingestion service.
// The embedder may be nil; every document then fails at the embed stage.
func NewIngestionService(
	readers driven.ReaderRegistry,
	extractor *MetadataExtractor,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	ledger driven.IngestionLedger,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		readers:       readers,
		extractor:     extractor,
		pipeline:      pipeline,
		embedder:      embedder,
		store:         store,
		ledger:        ledger,
		batchSize:     domain.DefaultEmbeddingBatch,
		moveProcessed: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestFile extracts, chunks, embeds and stores one file. Already-indexed
// files are skipped. Failures are recorded in the ledger and returned in the
// result, never dropped.
func (s *IngestionService) IngestFile(ctx context.Context, path string) domain.IngestResult {
	result := s.ingest(ctx, path)
	if result.Status == domain.IngestFailed {
		s.recordFailure(ctx, path, result.Err)
	}
	return result
}

//nolint:gocyclo // Sequential pipeline stages.
func (s *IngestionService) ingest(ctx context.Context, path string) domain.IngestResult {
	result := domain.IngestResult{Path: path, Status: domain.IngestFailed}
	fail := func(stage domain.IngestionStage, err error) domain.IngestResult {
		result.Err = &domain.IngestionError{Path: path, Stage: stage, Err: err}
		return result
	}

	if s.store == nil {
		return fail(domain.StageStore, domain.ErrVectorStoreUnavailable)
	}

	doc, err := s.readers.Read(ctx, path)
	if err != nil {
		return fail(domain.StageRead, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fail(domain.StageRead, fmt.Errorf("%w: no extractable text", domain.ErrInvalidInput))
	}
	result.DocumentID = doc.ID

	// Held from the existence checks through the upsert so concurrent
	// ingests of one document cannot both pass the checks.
	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	// Filename check first so known files never reach the generative tier.
	if indexed, err := s.store.HasDocument(ctx, domain.DocumentIdentity{Filename: doc.Filename}); err != nil {
		return fail(domain.StageStore, err)
	} else if indexed {
		logger.Debug("Skipping %s: filename already indexed", doc.Filename)
		result.Status = domain.IngestSkipped
		return result
	}

	meta := s.extractor.Extract(ctx, doc)
	result.Metadata = &meta

	if meta.ExternalID != "" {
		unlockExternal := s.locks.Lock("pmid:" + meta.ExternalID)
		defer unlockExternal()

		indexed, err := s.store.HasDocument(ctx, domain.DocumentIdentity{ExternalID: meta.ExternalID})
		if err != nil {
			return fail(domain.StageStore, err)
		}
		if indexed {
			logger.Debug("Skipping %s: PMID %s already indexed", doc.Filename, meta.ExternalID)
			result.Status = domain.IngestSkipped
			return result
		}
	}

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return fail(domain.StageChunk, err)
	}
	if len(chunks) == 0 {
		return fail(domain.StageChunk, fmt.Errorf("%w: document produced no chunks", domain.ErrInvalidInput))
	}

	if err := s.checkCollection(ctx); err != nil {
		return fail(domain.StageEmbed, err)
	}
	if err := s.embedChunks(ctx, chunks); err != nil {
		return fail(domain.StageEmbed, err)
	}

	entries := make([]driven.VectorEntry, len(chunks))
	for i := range chunks {
		entries[i] = driven.VectorEntry{
			ID:       chunks[i].ID,
			Vector:   chunks[i].Vector,
			Text:     chunks[i].Text,
			Metadata: encodeChunkMetadata(&meta, &chunks[i]),
		}
	}

	if err := s.store.Upsert(ctx, entries); err != nil {
		return fail(domain.StageStore, err)
	}

	record := domain.IngestionRecord{
		Metadata:       meta,
		Path:           path,
		ChunkCount:     len(chunks),
		EmbeddingModel: s.embedder.ModelName(),
		IngestedAt:     s.now(),
	}
	if err := s.ledger.RecordDocument(ctx, record); err != nil {
		// The chunks are stored; the ledger can be rebuilt by a reindex.
		logger.Warn("Failed to record %s in ledger: %v", path, err)
	}
	if err := s.ledger.ClearFailure(ctx, path); err != nil {
		logger.Debug("Failed to clear failure for %s: %v", path, err)
	}

	logger.With("document_id", meta.DocumentID, "method", meta.ExtractionMethod).
		Info("indexed document", "file", doc.Filename, "chunks", len(chunks))

	result.Status = domain.IngestIndexed
	result.Chunks = len(chunks)
	return result
}

// embedChunks fills each chunk's vector. Any failure aborts the whole
// document so no partial chunk set is ever stored.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := embedInBatches(ctx, s.embedder, texts, s.batchSize)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}
	return nil
}

// embedInBatches embeds texts batchSize at a time. The result has one
// vector per text or the call fails as a whole.
func embedInBatches(ctx context.Context, embedder driven.EmbeddingService, texts []string, batchSize int) ([][]float32, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if batchSize <= 0 {
		batchSize = domain.DefaultEmbeddingBatch
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vectors, err := embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts",
				domain.ErrEmbeddingUnavailable, len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// checkCollection registers the literature collection on first use and
// refuses to mix embedding models afterwards.
func (s *IngestionService) checkCollection(ctx context.Context) error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}

	info, err := s.ledger.GetCollection(ctx, s.store.Name())
	if errors.Is(err, domain.ErrNotFound) {
		return s.registerCollection(ctx)
	}
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	model, dims := s.embedder.ModelName(), s.embedder.Dimensions()
	if info.EmbeddingModel != model || (dims > 0 && info.Dimensions > 0 && info.Dimensions != dims) {
		return fmt.Errorf("%w: collection %q was built with %s (%d dimensions), configured model is %s",
			domain.ErrReindexRequired, info.Name, info.EmbeddingModel, info.Dimensions, model)
	}
	return nil
}

func (s *IngestionService) registerCollection(ctx context.Context) error {
	dims := s.embedder.Dimensions()
	if dims == 0 {
		dims = s.store.Dimensions()
	}
	info := domain.CollectionInfo{
		Name:           s.store.Name(),
		EmbeddingModel: s.embedder.ModelName(),
		Dimensions:     dims,
		UpdatedAt:      s.now(),
	}
	if err := s.ledger.SaveCollection(ctx, info); err != nil {
		return fmt.Errorf("register collection: %w", err)
	}
	return nil
}

func (s *IngestionService) recordFailure(ctx context.Context, path string, err error) {
	stage := domain.StageRead
	var ingestErr *domain.IngestionError
	if errors.As(err, &ingestErr) {
		stage = ingestErr.Stage
	}
	logger.Warn("Failed to ingest %s: %v", path, err)

	failure := domain.IngestionFailure{
		Path:     path,
		Stage:    stage,
		Error:    err.Error(),
		FailedAt: s.now(),
	}
	if ledgerErr := s.ledger.RecordFailure(ctx, failure); ledgerErr != nil {
		logger.Warn("Failed to record ingestion failure for %s: %v", path, ledgerErr)
	}
}

// IngestSource ingests every file src lists, one at a time.
// Returns ErrReindexRequired without ingesting anything when the configured
// embedding model differs from the one the collection was built with.
func (s *IngestionService) IngestSource(ctx context.Context, src driven.DocumentSource) (domain.IngestReport, error) {
	if s.store != nil {
		if err := s.checkCollection(ctx); err != nil {
			return domain.IngestReport{}, err
		}
	}

	paths, err := src.Scan(ctx)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("scan source: %w", err)
	}
	logger.Section("Ingestion")
	logger.Info("Found %d file(s) in %s", len(paths), src.Root())

	return s.ingestPaths(ctx, src, paths, s.moveProcessed)
}

func (s *IngestionService) ingestPaths(
	ctx context.Context, src driven.DocumentSource, paths []string, move bool,
) (domain.IngestReport, error) {
	var report domain.IngestReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, s.ingestOne(ctx, src, path, move))
	}
	logger.Info("Ingestion complete: %d indexed, %d skipped, %d failed",
		report.Count(domain.IngestIndexed), report.Count(domain.IngestSkipped), report.Count(domain.IngestFailed))
	return report, nil
}

// ingestOne ingests path and moves it aside when it is indexed or already known.
func (s *IngestionService) ingestOne(ctx context.Context, src driven.DocumentSource, path string, move bool) domain.IngestResult {
	result := s.IngestFile(ctx, path)
	if !move || result.Status == domain.IngestFailed {
		return result
	}

	dest, err := src.MarkProcessed(ctx, path)
	if err != nil {
		s.recordFailure(ctx, path, &domain.IngestionError{Path: path, Stage: domain.StageMove, Err: err})
		return result
	}
	if result.Status == domain.IngestIndexed && result.Metadata != nil {
		s.updateRecordPath(ctx, result.Metadata.DocumentID, dest)
	}
	return result
}

func (s *IngestionService) updateRecordPath(ctx context.Context, documentID, path string) {
	record, err := s.ledger.GetDocument(ctx, documentID)
	if err != nil {
		return
	}
	record.Path = path
	if err := s.ledger.RecordDocument(ctx, *record); err != nil {
		logger.Debug("Failed to update ledger path for %s: %v", documentID, err)
	}
}

// Reindex wipes the literature collection and ledger, then rebuilds it from
// the already-processed files followed by any new files.
func (s *IngestionService) Reindex(ctx context.Context, src driven.DocumentSource) (domain.IngestReport, error) {
	if s.store == nil {
		return domain.IngestReport{}, domain.ErrVectorStoreUnavailable
	}
	if s.embedder == nil {
		return domain.IngestReport{}, domain.ErrEmbeddingUnavailable
	}

	processed, err := src.ScanProcessed(ctx)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("scan processed: %w", err)
	}

	logger.Section("Reindex")
	if err := s.store.Reset(ctx); err != nil {
		return domain.IngestReport{}, fmt.Errorf("reset %s: %w", s.store.Name(), err)
	}
	if err := s.ledger.ResetDocuments(ctx); err != nil {
		return domain.IngestReport{}, fmt.Errorf("reset ledger: %w", err)
	}
	if err := s.registerCollection(ctx); err != nil {
		return domain.IngestReport{}, err
	}

	report, err := s.ingestPaths(ctx, src, processed, false)
	if err != nil {
		return report, err
	}
	fresh, err := s.IngestSource(ctx, src)
	report.Results = append(report.Results, fresh.Results...)
	return report, err
}

// Watch ingests what is already waiting, then every file that arrives,
// until ctx is cancelled.
func (s *IngestionService) Watch(
	ctx context.Context, src driven.DocumentSource, onResult func(domain.IngestResult),
) error {
	if onResult == nil {
		onResult = func(domain.IngestResult) {}
	}

	report, err := s.IngestSource(ctx, src)
	if err != nil {
		return err
	}
	for _, r := range report.Results {
		onResult(r)
	}

	paths, errs, err := src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch source: %w", err)
	}
	logger.Info("Watching %s for new documents", src.Root())

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			onResult(s.ingestOne(ctx, src, path, s.moveProcessed))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// Stats summarises the ledger and the literature collection.
func (s *IngestionService) Stats(ctx context.Context) (driving.IngestionStats, error) {
	ledgerStats, err := s.ledger.Stats(ctx)
	if err != nil {
		return driving.IngestionStats{}, fmt.Errorf("ledger stats: %w", err)
	}
	stats := driving.IngestionStats{
		Ledger:      ledgerStats,
		Collections: make(map[string]int),
	}
	if s.store != nil {
		stats.Collections[s.store.Name()] = s.store.Count()
	}
	if s.embedder != nil {
		stats.Model = s.embedder.ModelName()
	}
	return stats, nil
}

// NeedsReview lists documents whose metadata fell back to filename defaults.
func (s *IngestionService) NeedsReview(ctx context.Context) ([]domain.IngestionRecord, error) {
	return s.ledger.ListNeedsReview(ctx)
}

// Document returns the ledger record of an indexed document.
func (s *IngestionService) Document(ctx context.Context, documentID string) (*domain.IngestionRecord, error) {
	return s.ledger.GetDocument(ctx, documentID)
}

// Failures lists files that could not be indexed.
func (s *IngestionService) Failures(ctx context.Context) ([]domain.IngestionFailure, error) {
	return s.ledger.ListFailures(ctx)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

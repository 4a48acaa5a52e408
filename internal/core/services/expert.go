package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure ExpertKnowledgeService implements the interface.
var _ driving.ExpertService = (*ExpertKnowledgeService)(nil)

// Metadata keys of expert store entries.
const (
	metaScenarioID   = "scenario_id"
	metaDifficulty   = "difficulty_level"
	metaCompetency   = "competency_area"
	metaMasteryLevel = "mastery_level"
	metaPayload      = "payload"
)

// expertNamespace seeds deterministic IDs for entries imported without one.
var expertNamespace = uuid.MustParse("6f1c1d2e-8f0b-4c57-9a52-3f5d0c9b7e41")

// ExpertKnowledgeService stores and retrieves expert corrections and graded
// exemplars. Corrections are matched on the learner input they responded to,
// exemplars on their response text.
type ExpertKnowledgeService struct {
	embedder    driven.EmbeddingService
	corrections driven.VectorStore
	exemplars   driven.VectorStore

	maxCorrections int
	maxExemplars   int
	batchSize      int
}

// ExpertOption configures an ExpertKnowledgeService.
type ExpertOption func(*ExpertKnowledgeService)

// WithExpertLimits sets the default number of corrections and exemplars returned.
func WithExpertLimits(corrections, exemplars int) ExpertOption {
	return func(s *ExpertKnowledgeService) {
		if corrections > 0 {
			s.maxCorrections = corrections
		}
		if exemplars > 0 {
			s.maxExemplars = exemplars
		}
	}
}

// NewExpertKnowledgeService creates the expert knowledge service.
func NewExpertKnowledgeService(
	embedder driven.EmbeddingService, corrections, exemplars driven.VectorStore, opts ...ExpertOption,
) *ExpertKnowledgeService {
	s := &ExpertKnowledgeService{
		embedder:       embedder,
		corrections:    corrections,
		exemplars:      exemplars,
		maxCorrections: domain.DefaultMaxCorrections,
		maxExemplars:   domain.DefaultMaxExemplars,
		batchSize:      domain.DefaultEmbeddingBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import validates, embeds and stores the entries of an import file.
// Invalid entries are skipped with a warning. Entries whose ID is already
// stored are left untouched.
func (s *ExpertKnowledgeService) Import(ctx context.Context, data *domain.ExpertImport) (driving.ExpertImportReport, error) {
	var report driving.ExpertImportReport
	if data == nil {
		return report, fmt.Errorf("%w: empty import", domain.ErrInvalidInput)
	}
	if s.corrections == nil || s.exemplars == nil {
		return report, domain.ErrVectorStoreUnavailable
	}

	var corrections []driven.VectorEntry
	for i := range data.Corrections {
		c := data.Corrections[i]
		if err := c.Validate(); err != nil {
			logger.Warn("Skipping correction %d: %v", i+1, err)
			report.Skipped++
			continue
		}
		c.Normalise()
		if c.ID == "" {
			c.ID = deterministicID("correction", c.ScenarioID, c.LearnerInput, c.ExpertCorrection)
		}
		entry, err := correctionEntry(&c)
		if err != nil {
			return report, err
		}
		corrections = append(corrections, entry)
	}

	var exemplars []driven.VectorEntry
	for i := range data.Exemplars {
		e := data.Exemplars[i]
		if err := e.Validate(); err != nil {
			logger.Warn("Skipping exemplar %d: %v", i+1, err)
			report.Skipped++
			continue
		}
		if e.ID == "" {
			e.ID = deterministicID("exemplar", e.ScenarioID, string(e.MasteryLevel), e.ResponseText)
		}
		entry, err := exemplarEntry(&e)
		if err != nil {
			return report, err
		}
		exemplars = append(exemplars, entry)
	}

	added, skipped, err := s.store(ctx, s.corrections, corrections)
	if err != nil {
		return report, fmt.Errorf("store corrections: %w", err)
	}
	report.CorrectionsAdded = added
	report.Skipped += skipped

	added, skipped, err = s.store(ctx, s.exemplars, exemplars)
	if err != nil {
		return report, fmt.Errorf("store exemplars: %w", err)
	}
	report.ExemplarsAdded = added
	report.Skipped += skipped

	logger.Info("Imported %d correction(s), %d exemplar(s), skipped %d",
		report.CorrectionsAdded, report.ExemplarsAdded, report.Skipped)
	return report, nil
}

// store embeds entries and upserts those whose ID is not yet present.
func (s *ExpertKnowledgeService) store(
	ctx context.Context, store driven.VectorStore, entries []driven.VectorEntry,
) (added, skipped int, err error) {
	unique := uniqueEntries(entries)
	skipped = len(entries) - len(unique)
	entries = unique
	if len(entries) == 0 {
		return 0, skipped, nil
	}

	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].Text
	}
	vectors, err := embedInBatches(ctx, s.embedder, texts, s.batchSize)
	if err != nil {
		return 0, 0, err
	}

	fresh := make([]driven.VectorEntry, 0, len(entries))
	for i := range entries {
		entries[i].Vector = vectors[i]
		exists, err := s.contains(ctx, store, &entries[i])
		if err != nil {
			return 0, 0, err
		}
		if exists {
			skipped++
			continue
		}
		fresh = append(fresh, entries[i])
	}
	if len(fresh) == 0 {
		return 0, skipped, nil
	}
	if err := store.Upsert(ctx, fresh); err != nil {
		return 0, 0, err
	}
	return len(fresh), skipped, nil
}

func (s *ExpertKnowledgeService) contains(ctx context.Context, store driven.VectorStore, entry *driven.VectorEntry) (bool, error) {
	if store.Count() == 0 {
		return false, nil
	}
	matches, err := store.Query(ctx, entry.Vector, 1, map[string]string{driven.MetaDocumentID: entry.ID})
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Find returns the corrections and exemplars for the query's scenario whose
// stored text is most similar to the query text.
func (s *ExpertKnowledgeService) Find(ctx context.Context, query driving.ExpertQuery) (domain.ExpertKnowledge, error) {
	var knowledge domain.ExpertKnowledge

	text := strings.TrimSpace(query.Text)
	if text == "" {
		return knowledge, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}
	if s.corrections == nil || s.exemplars == nil {
		return knowledge, domain.ErrVectorStoreUnavailable
	}
	if s.corrections.Count() == 0 && s.exemplars.Count() == 0 {
		return knowledge, nil
	}
	if s.embedder == nil {
		return knowledge, domain.ErrEmbeddingUnavailable
	}

	maxCorrections := query.MaxCorrections
	if maxCorrections <= 0 {
		maxCorrections = s.maxCorrections
	}
	maxExemplars := query.MaxExemplars
	if maxExemplars <= 0 {
		maxExemplars = s.maxExemplars
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return knowledge, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	var filter map[string]string
	if query.ScenarioID != "" {
		filter = map[string]string{metaScenarioID: query.ScenarioID}
	}

	if s.corrections.Count() > 0 {
		matches, err := s.corrections.Query(ctx, vector, maxCorrections, filter)
		if err != nil {
			return knowledge, fmt.Errorf("query corrections: %w", err)
		}
		for _, m := range matches {
			var c domain.ExpertCorrection
			if err := json.Unmarshal([]byte(m.Metadata[metaPayload]), &c); err != nil {
				logger.Warn("Ignoring unreadable correction %s: %v", m.ID, err)
				continue
			}
			knowledge.Corrections = append(knowledge.Corrections,
				domain.ExpertMatch[domain.ExpertCorrection]{Entry: c, Similarity: m.Similarity})
		}
	}

	if s.exemplars.Count() > 0 {
		matches, err := s.exemplars.Query(ctx, vector, maxExemplars, filter)
		if err != nil {
			return knowledge, fmt.Errorf("query exemplars: %w", err)
		}
		for _, m := range matches {
			var e domain.ExpertExemplar
			if err := json.Unmarshal([]byte(m.Metadata[metaPayload]), &e); err != nil {
				logger.Warn("Ignoring unreadable exemplar %s: %v", m.ID, err)
				continue
			}
			knowledge.Exemplars = append(knowledge.Exemplars,
				domain.ExpertMatch[domain.ExpertExemplar]{Entry: e, Similarity: m.Similarity})
		}
	}

	logger.Debug("Expert knowledge for %q: %d correction(s), %d exemplar(s)",
		query.ScenarioID, len(knowledge.Corrections), len(knowledge.Exemplars))
	return knowledge, nil
}

// Counts returns the number of stored corrections and exemplars.
func (s *ExpertKnowledgeService) Counts() (corrections, exemplars int) {
	if s.corrections != nil {
		corrections = s.corrections.Count()
	}
	if s.exemplars != nil {
		exemplars = s.exemplars.Count()
	}
	return corrections, exemplars
}

func correctionEntry(c *domain.ExpertCorrection) (driven.VectorEntry, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return driven.VectorEntry{}, fmt.Errorf("encode correction %s: %w", c.ID, err)
	}
	meta := map[string]string{
		driven.MetaDocumentID: c.ID,
		metaScenarioID:        c.ScenarioID,
		metaPayload:           string(payload),
	}
	setIf(meta, metaDifficulty, c.DifficultyLevel)
	setIf(meta, metaCompetency, c.CompetencyArea)
	return driven.VectorEntry{ID: c.ID, Text: c.LearnerInput, Metadata: meta}, nil
}

func exemplarEntry(e *domain.ExpertExemplar) (driven.VectorEntry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return driven.VectorEntry{}, fmt.Errorf("encode exemplar %s: %w", e.ID, err)
	}
	return driven.VectorEntry{
		ID:   e.ID,
		Text: e.ResponseText,
		Metadata: map[string]string{
			driven.MetaDocumentID: e.ID,
			metaScenarioID:        e.ScenarioID,
			metaMasteryLevel:      string(e.MasteryLevel),
			metaPayload:           string(payload),
		},
	}, nil
}

// uniqueEntries drops repeated IDs within one import, keeping the first.
func uniqueEntries(entries []driven.VectorEntry) []driven.VectorEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]driven.VectorEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			logger.Warn("Duplicate expert entry ID %s in import; keeping the first", e.ID)
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func deterministicID(kind string, parts ...string) string {
	key := kind + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(expertNamespace, []byte(key)).String()
}

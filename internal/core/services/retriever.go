package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure HierarchicalRetriever implements the interface.
var _ driving.RetrievalService = (*HierarchicalRetriever)(nil)

// localCandidateFactor widens the local query so that several chunks of one
// document do not crowd out other documents before deduplication.
const localCandidateFactor = 4

// maxFullTextChars bounds the full-text excerpt kept per result.
const maxFullTextChars = 3000

// HierarchicalRetriever looks up evidence in the local literature store first
// and falls back to external bibliographic search and full-text fetch.
// Every backend is optional; a missing or failing tier is skipped.
type HierarchicalRetriever struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	search   driven.BibliographicSearch
	fulltext driven.FullTextFetcher

	minSimilarity   float64
	maxResults      int
	fullTextTopN    int
	externalEnabled bool
}

// RetrieverOption configures a HierarchicalRetriever.
type RetrieverOption func(*HierarchicalRetriever)

// WithMinSimilarity sets the relevance bar for local results.
func WithMinSimilarity(v float64) RetrieverOption {
	return func(r *HierarchicalRetriever) {
		if v >= 0 && v <= 1 {
			r.minSimilarity = v
		}
	}
}

// WithMaxResults sets the default result cap.
func WithMaxResults(n int) RetrieverOption {
	return func(r *HierarchicalRetriever) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithFullTextTopN sets how many external results get a full-text fetch.
func WithFullTextTopN(n int) RetrieverOption {
	return func(r *HierarchicalRetriever) {
		if n >= 0 {
			r.fullTextTopN = n
		}
	}
}

// WithExternalSearch sets the external tiers. Either may be nil.
func WithExternalSearch(search driven.BibliographicSearch, fulltext driven.FullTextFetcher) RetrieverOption {
	return func(r *HierarchicalRetriever) {
		r.search = search
		r.fulltext = fulltext
	}
}

// WithExternalEnabled switches the external tiers on or off.
func WithExternalEnabled(enabled bool) RetrieverOption {
	return func(r *HierarchicalRetriever) {
		r.externalEnabled = enabled
	}
}

// NewHierarchicalRetriever creates a retriever over the literature store.
func NewHierarchicalRetriever(
	embedder driven.EmbeddingService, store driven.VectorStore, opts ...RetrieverOption,
) *HierarchicalRetriever {
	r := &HierarchicalRetriever{
		embedder:        embedder,
		store:           store,
		minSimilarity:   domain.DefaultMinSimilarity,
		maxResults:      domain.DefaultMaxResults,
		fullTextTopN:    domain.DefaultFullTextTopN,
		externalEnabled: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns merged, deduplicated evidence for the query text.
// Tier failures are recorded in the evidence, never returned as errors.
func (r *HierarchicalRetriever) Retrieve(ctx context.Context, query driving.RetrievalQuery) (domain.Evidence, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return domain.Evidence{}, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = r.maxResults
	}

	logger.Section("Hierarchical Retrieval")
	ev := domain.Evidence{Query: text}

	ev.Trace = append(ev.Trace, domain.StateLocalOnly)
	local, below, err := r.searchLocal(ctx, text, maxResults)
	if err != nil {
		logger.Warn("Local retrieval skipped: %v", err)
		ev.Failures = append(ev.Failures, domain.TierFailure{Tier: domain.TierLocal, Error: err.Error()})
	}
	ev.BelowThreshold = below
	logger.Debug("Local tier: %d above %.2f, %d below", len(local), r.minSimilarity, below)

	var external []domain.RetrievalResult
	if len(dedupeResults(local)) < maxResults || query.ForceExternal {
		ev.Trace = append(ev.Trace, domain.StateLocalInsufficient)
		if r.externalEnabled && r.search != nil {
			external = r.searchExternal(ctx, text, maxResults, &ev)
		}
	}

	ev.Trace = append(ev.Trace, domain.StateMerged)
	ev.Results = mergeResults(local, external, maxResults)

	switch {
	case len(ev.Results) > 0:
		ev.Outcome = domain.OutcomeEvidenceFound
	case ev.BelowThreshold > 0:
		ev.Outcome = domain.OutcomeEvidenceIrrelevant
	default:
		ev.Outcome = domain.OutcomeNoEvidence
	}

	logger.Info("Retrieved %d result(s): %s", len(ev.Results), ev.Outcome)
	return ev, nil
}

// searchLocal returns local results meeting the threshold and the number
// of candidates that did not.
func (r *HierarchicalRetriever) searchLocal(ctx context.Context, text string, maxResults int) ([]domain.RetrievalResult, int, error) {
	if r.store == nil {
		return nil, 0, domain.ErrVectorStoreUnavailable
	}
	if r.embedder == nil {
		return nil, 0, domain.ErrEmbeddingUnavailable
	}
	if r.store.Count() == 0 {
		return nil, 0, nil
	}

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	matches, err := r.store.Query(ctx, vector, maxResults*localCandidateFactor, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", r.store.Name(), err)
	}

	var (
		results []domain.RetrievalResult
		below   int
	)
	for _, m := range matches {
		if m.Similarity < r.minSimilarity {
			below++
			continue
		}
		results = append(results, domain.RetrievalResult{
			Text:       m.Text,
			Metadata:   decodePaperMetadata(m.Metadata),
			Similarity: m.Similarity,
			Tier:       domain.TierLocal,
		})
	}
	return results, below, nil
}

// searchExternal runs the bibliographic search and upgrades the top results
// with full text where available.
func (r *HierarchicalRetriever) searchExternal(
	ctx context.Context, text string, maxResults int, ev *domain.Evidence,
) []domain.RetrievalResult {
	ev.Trace = append(ev.Trace, domain.StateExternalSearch)
	results, err := r.search.Search(ctx, text, maxResults)
	if err != nil {
		logger.Warn("%s search skipped: %v", r.search.Name(), err)
		ev.Failures = append(ev.Failures, domain.TierFailure{Tier: domain.TierExternalSearch, Error: err.Error()})
		return nil
	}
	logger.Debug("External search: %d result(s)", len(results))

	if r.fulltext == nil || r.fullTextTopN == 0 {
		return results
	}

	var candidates []int
	for i := range results {
		if len(candidates) == r.fullTextTopN {
			break
		}
		if results[i].Metadata.PMCID != "" {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return results
	}

	ev.Trace = append(ev.Trace, domain.StateExternalFullText)
	for _, i := range candidates {
		pmcid := results[i].Metadata.PMCID
		body, err := r.fulltext.FetchFullText(ctx, pmcid)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				ev.Failures = append(ev.Failures, domain.TierFailure{Tier: domain.TierExternalFullText, Error: err.Error()})
			}
			logger.Debug("Full text for %s unavailable: %v", pmcid, err)
			continue
		}
		if excerpt := relevantExcerpt(body, text, maxFullTextChars); excerpt != "" {
			if results[i].Abstract == "" {
				results[i].Abstract = results[i].Text
			}
			results[i].Text = excerpt
			results[i].Tier = domain.TierExternalFullText
		}
	}
	return results
}

// mergeResults dedupes and caps results. Local results that passed the
// threshold come first; external results only fill the slots left over,
// since their similarity is derived from rank rather than measured.
func mergeResults(local, external []domain.RetrievalResult, maxResults int) []domain.RetrievalResult {
	merged := dedupeResults(local)
	sortResults(merged)

	seen := make(map[string]bool, len(merged))
	for _, res := range merged {
		seen[res.Metadata.DedupKey()] = true
	}
	var extra []domain.RetrievalResult
	for _, res := range dedupeResults(external) {
		if !seen[res.Metadata.DedupKey()] {
			extra = append(extra, res)
		}
	}
	sortResults(extra)

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	if room := maxResults - len(merged); len(extra) > room {
		extra = extra[:room]
	}
	return append(merged, extra...)
}

// dedupeResults keeps the most similar result per dedup key.
func dedupeResults(results []domain.RetrievalResult) []domain.RetrievalResult {
	best := make(map[string]int, len(results))
	var out []domain.RetrievalResult
	for _, res := range results {
		key := res.Metadata.DedupKey()
		if i, ok := best[key]; ok {
			if res.Similarity > out[i].Similarity {
				out[i] = res
			}
			continue
		}
		best[key] = len(out)
		out = append(out, res)
	}
	return out
}

// sortResults orders by similarity, then newer year, then document ID.
func sortResults(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Metadata.Year != b.Metadata.Year {
			return a.Metadata.Year > b.Metadata.Year
		}
		return a.Metadata.DocumentID < b.Metadata.DocumentID
	})
}

// relevantExcerpt picks the paragraphs of body sharing the most terms with
// query, in document order, up to limit characters.
func relevantExcerpt(body, query string, limit int) string {
	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		return ""
	}
	terms := queryTerms(query)

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(paragraphs))
	for i, p := range paragraphs {
		ranked[i] = scored{idx: i, score: termHits(p, terms)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	chosen := make(map[int]bool)
	size := 0
	for _, s := range ranked {
		n := len(paragraphs[s.idx])
		if size > 0 && size+n > limit {
			continue
		}
		chosen[s.idx] = true
		size += n
		if size >= limit {
			break
		}
	}

	var parts []string
	for i, p := range paragraphs {
		if chosen[i] {
			parts = append(parts, p)
		}
	}
	excerpt := strings.Join(parts, "\n\n")
	if len(excerpt) > limit {
		excerpt = domain.Truncate(excerpt, limit)
	}
	return excerpt
}

func splitParagraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = cleanLine(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(domain.NormaliseText(query)) {
		if len(w) > 3 {
			terms[w] = true
		}
	}
	return terms
}

func termHits(text string, terms map[string]bool) int {
	hits := 0
	for _, w := range strings.Fields(domain.NormaliseText(text)) {
		if terms[w] {
			hits++
		}
	}
	return hits
}

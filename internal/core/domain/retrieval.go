package domain

// SourceTier identifies which retrieval backend produced a result.
type SourceTier string

// Retrieval tiers, in fallback order.
const (
	TierLocal            SourceTier = "local"
	TierExternalSearch   SourceTier = "external_search"
	TierExternalFullText SourceTier = "external_fulltext"
)

// RetrievalResult is one piece of evidence. Query-scoped; never persisted.
type RetrievalResult struct {
	// Text is the chunk text (local) or abstract / full-text excerpt (external).
	Text string

	// Abstract is the source abstract when known (external results).
	Abstract string

	// Metadata is the bibliographic metadata of the source document.
	Metadata PaperMetadata

	// Similarity is the cosine similarity to the query for local results,
	// or a rank-derived relevance for external results.
	Similarity float64

	// Tier is the backend that produced this result.
	Tier SourceTier
}

// RetrievalState is a step of the hierarchical retrieval state machine.
type RetrievalState string

// Retrieval states.
const (
	StateLocalOnly         RetrievalState = "LOCAL_ONLY"
	StateLocalInsufficient RetrievalState = "LOCAL_INSUFFICIENT"
	StateExternalSearch    RetrievalState = "EXTERNAL_SEARCH"
	StateExternalFullText  RetrievalState = "EXTERNAL_FULLTEXT"
	StateMerged            RetrievalState = "MERGED"
)

// RetrievalOutcome distinguishes why a retrieval returned what it did.
type RetrievalOutcome string

// Retrieval outcomes.
const (
	// OutcomeEvidenceFound means at least one result met the relevance bar.
	OutcomeEvidenceFound RetrievalOutcome = "evidence_found"

	// OutcomeEvidenceIrrelevant means candidates existed but none met the bar
	// and no external evidence was found.
	OutcomeEvidenceIrrelevant RetrievalOutcome = "evidence_irrelevant"

	// OutcomeNoEvidence means no candidate evidence was found at all.
	OutcomeNoEvidence RetrievalOutcome = "no_evidence"
)

// TierFailure records a tier that was skipped because its backend failed.
type TierFailure struct {
	Tier  SourceTier
	Error string
}

// Evidence is the output of one hierarchical retrieval.
type Evidence struct {
	Query    string
	Results  []RetrievalResult
	Outcome  RetrievalOutcome
	Trace    []RetrievalState
	Failures []TierFailure

	// BelowThreshold counts local candidates discarded by the similarity threshold.
	BelowThreshold int
}

// HasEvidence returns true if any result survived retrieval.
func (e Evidence) HasEvidence() bool {
	return len(e.Results) > 0
}

// CountByTier returns the number of results per tier.
func (e Evidence) CountByTier() map[SourceTier]int {
	counts := make(map[SourceTier]int)
	for i := range e.Results {
		counts[e.Results[i].Tier]++
	}
	return counts
}

// StudyType is the inferred methodological type of a source.
type StudyType string

// Study types, strongest evidence first.
const (
	StudyGuideline      StudyType = "guideline"
	StudyMetaAnalysis   StudyType = "meta_analysis"
	StudySystematic     StudyType = "systematic_review"
	StudyRandomized     StudyType = "randomized_trial"
	StudyCohort         StudyType = "cohort"
	StudyCaseControl    StudyType = "case_control"
	StudyCrossSectional StudyType = "cross_sectional"
	StudyCaseSeries     StudyType = "case_series"
	StudyNarrative      StudyType = "narrative_review"
	StudyOpinion        StudyType = "expert_opinion"
	StudyUnknown        StudyType = "unknown"
)

// RankedCitation is a deduplicated, scored piece of evidence.
type RankedCitation struct {
	Result    RetrievalResult
	StudyType StudyType
	Score     float64
}

// UnrankedCitations wraps results in retrieval order, scored by similarity.
func UnrankedCitations(results []RetrievalResult) []RankedCitation {
	out := make([]RankedCitation, len(results))
	for i, r := range results {
		out[i] = RankedCitation{Result: r, StudyType: StudyUnknown, Score: r.Similarity}
	}
	return out
}

package driving

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// RetrievalQuery parameterises a hierarchical retrieval.
type RetrievalQuery struct {
	// Text is the query text; for feedback this is the learner input.
	Text string

	// MaxResults caps the merged results; 0 uses the configured default.
	MaxResults int

	// ForceExternal runs the external tiers even when local evidence suffices.
	ForceExternal bool
}

// RetrievalService finds literature evidence for a query.
type RetrievalService interface {
	// Retrieve returns merged, deduplicated evidence. Tier failures degrade to
	// the next tier and are reported in Evidence.Failures, not as an error.
	Retrieve(ctx context.Context, query RetrievalQuery) (domain.Evidence, error)
}

// CitationRanker orders evidence by strength.
type CitationRanker interface {
	// Rank dedupes and scores results, strongest first.
	Rank(results []domain.RetrievalResult) []domain.RankedCitation
}

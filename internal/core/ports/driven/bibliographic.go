package driven

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// BibliographicSearch queries an external literature index.
// Results are returned in the index's relevance order with Tier set to
// external_search and Similarity set to a rank-derived relevance in (0, 1].
type BibliographicSearch interface {
	// Search returns up to max results for the query.
	Search(ctx context.Context, query string, max int) ([]domain.RetrievalResult, error)

	// Name identifies the backend in logs.
	Name() string
}

// FullTextFetcher retrieves open-access full text for a document.
type FullTextFetcher interface {
	// FetchFullText returns the body text of the article with the given
	// PubMed Central ID. Returns domain.ErrNotFound when no open text exists.
	FetchFullText(ctx context.Context, pmcid string) (string, error)
}

package driving

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// ExpertImportReport summarises an expert knowledge import.
type ExpertImportReport struct {
	CorrectionsAdded int
	ExemplarsAdded   int
	Skipped          int
}

// ExpertQuery parameterises an expert knowledge lookup.
type ExpertQuery struct {
	Text            string
	ScenarioID      string
	DifficultyLevel string
	MaxCorrections  int
	MaxExemplars    int
}

// ExpertService manages and queries the expert knowledge store.
type ExpertService interface {
	// Import validates, embeds and stores corrections and exemplars.
	// Entries are keyed by ID so re-importing the same file is a no-op.
	Import(ctx context.Context, data *domain.ExpertImport) (ExpertImportReport, error)

	// Find returns the corrections and exemplars most similar to the query.
	Find(ctx context.Context, query ExpertQuery) (domain.ExpertKnowledge, error)

	// Counts returns the number of stored corrections and exemplars.
	Counts() (corrections, exemplars int)
}

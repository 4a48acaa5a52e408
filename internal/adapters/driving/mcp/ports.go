package mcp

import (
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval finds literature evidence.
	Retrieval driving.RetrievalService

	// Ranker orders evidence by strength. Optional; results are returned
	// unranked without it.
	Ranker driving.CitationRanker

	// Feedback generates grounded feedback. Optional; the generate_feedback
	// tool is not registered without it.
	Feedback driving.FeedbackService

	// Ingestion exposes the ledger as resources. Optional.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}

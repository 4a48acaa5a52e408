package mcp

import (
	"context"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	evidence domain.Evidence
	err      error
	query    driving.RetrievalQuery
}

func (m *mockRetrievalService) Retrieve(_ context.Context, q driving.RetrievalQuery) (domain.Evidence, error) {
	m.query = q
	return m.evidence, m.err
}

// reverseRanker ranks results in reverse order with a fixed study type.
type reverseRanker struct{}

func (reverseRanker) Rank(results []domain.RetrievalResult) []domain.RankedCitation {
	out := make([]domain.RankedCitation, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		out = append(out, domain.RankedCitation{
			Result:    results[i],
			StudyType: domain.StudyRandomized,
			Score:     float64(i + 1),
		})
	}
	return out
}

// mockFeedbackService is a mock implementation of driving.FeedbackService.
type mockFeedbackService struct {
	resp *domain.FeedbackResponse
	err  error
	req  domain.FeedbackRequest
}

func (m *mockFeedbackService) Generate(_ context.Context, req domain.FeedbackRequest) (*domain.FeedbackResponse, error) {
	m.req = req
	return m.resp, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
// Only the ledger queries are used by the server.
type mockIngestionService struct {
	stats   driving.IngestionStats
	records []domain.IngestionRecord
	record  *domain.IngestionRecord
	err     error
}

func (m *mockIngestionService) IngestFile(context.Context, string) domain.IngestResult {
	return domain.IngestResult{}
}

func (m *mockIngestionService) IngestSource(context.Context, driven.DocumentSource) (domain.IngestReport, error) {
	return domain.IngestReport{}, m.err
}

func (m *mockIngestionService) Reindex(context.Context, driven.DocumentSource) (domain.IngestReport, error) {
	return domain.IngestReport{}, m.err
}

func (m *mockIngestionService) Watch(context.Context, driven.DocumentSource, func(domain.IngestResult)) error {
	return m.err
}

func (m *mockIngestionService) Stats(context.Context) (driving.IngestionStats, error) {
	return m.stats, m.err
}

func (m *mockIngestionService) NeedsReview(context.Context) ([]domain.IngestionRecord, error) {
	return m.records, m.err
}

func (m *mockIngestionService) Document(context.Context, string) (*domain.IngestionRecord, error) {
	if m.record == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.record, m.err
}

func (m *mockIngestionService) Failures(context.Context) ([]domain.IngestionFailure, error) {
	return nil, m.err
}

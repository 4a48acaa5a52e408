package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFeedback struct {
	resp *domain.FeedbackResponse
	err  error
	got  domain.FeedbackRequest
}

func (s *stubFeedback) Generate(_ context.Context, req domain.FeedbackRequest) (*domain.FeedbackResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.resp, nil
}

type stubRetrieval struct {
	evidence domain.Evidence
	err      error
	got      driving.RetrievalQuery
}

func (s *stubRetrieval) Retrieve(_ context.Context, q driving.RetrievalQuery) (domain.Evidence, error) {
	s.got = q
	return s.evidence, s.err
}

type fixedRanker struct{}

func (fixedRanker) Rank(results []domain.RetrievalResult) []domain.RankedCitation {
	out := make([]domain.RankedCitation, len(results))
	for i, r := range results {
		out[i] = domain.RankedCitation{Result: r, StudyType: domain.StudyGuideline, Score: 1}
	}
	return out
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out))
	return out
}

func guideline() domain.RetrievalResult {
	return domain.RetrievalResult{
		Text: "Target an AUC of 400 to 600 mg*h/L.",
		Metadata: domain.PaperMetadata{
			DocumentID: "doc-1", Title: "Vancomycin guideline", FirstAuthor: "Rybak MJ",
			Year: 2020, ExternalID: "32658968", Filename: "rybak.pdf",
		},
		Similarity: 0.81,
		Tier:       domain.TierLocal,
	}
}

func TestNewServer_RequiresFeedback(t *testing.T) {
	_, err := NewServer(&Ports{})
	assert.ErrorIs(t, err, ErrMissingFeedbackService)

	_, err = NewServer(nil)
	assert.ErrorIs(t, err, ErrMissingFeedbackService)
}

func TestHealthz(t *testing.T) {
	s, err := NewServer(&Ports{Feedback: &stubFeedback{}})
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFeedback(t *testing.T) {
	feedback := &stubFeedback{resp: &domain.FeedbackResponse{
		FeedbackText: "Dose by weight [1].",
		Sources: domain.SourceCounts{
			ExpertCorrectionsUsed: 1,
			ExemplarsShown:        2,
			LiteratureCitations:   1,
		},
		Citations:       []domain.RankedCitation{{Result: guideline(), StudyType: domain.StudyGuideline, Score: 1.2}},
		EvidenceOutcome: domain.OutcomeEvidenceFound,
		Backend:         "openai/gpt-4o-mini",
	}}
	s, err := NewServer(&Ports{Feedback: feedback})
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/feedback", `{
		"learner_input": "Start vancomycin 1 g q12h",
		"scenario_id": "vanco-1",
		"scenario_context": {"title": "MRSA bacteraemia", "objectives": ["AUC dosing"]},
		"difficulty_level": "advanced"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "vanco-1", feedback.got.Scenario.ScenarioID)
	assert.Equal(t, "MRSA bacteraemia", feedback.got.Scenario.Title)
	assert.Equal(t, []string{"AUC dosing"}, feedback.got.Scenario.Objectives)
	assert.Equal(t, "advanced", feedback.got.DifficultyLevel)

	got := decode[FeedbackResponse](t, rec)
	assert.Equal(t, "Dose by weight [1].", got.FeedbackText)
	assert.Equal(t, domain.SourceCounts{ExpertCorrectionsUsed: 1, ExemplarsShown: 2, LiteratureCitations: 1}, got.Sources)
	assert.Equal(t, "evidence_found", got.EvidenceOutcome)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "32658968", got.Citations[0].PMID)
	assert.Equal(t, "guideline", got.Citations[0].StudyType)
	assert.Equal(t, "Rybak MJ. Vancomycin guideline. 2020", got.Citations[0].Citation)
}

func TestFeedback_ResponseShape(t *testing.T) {
	feedback := &stubFeedback{resp: &domain.FeedbackResponse{
		FeedbackText:    "No literature was retrieved.",
		EvidenceOutcome: domain.OutcomeNoEvidence,
	}}
	s, err := NewServer(&Ports{Feedback: feedback})
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/feedback", `{"learner_input":"x","scenario_id":"s"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, map[string]any{
		"expert_corrections_used": 0.0,
		"exemplars_shown":         0.0,
		"literature_citations":    0.0,
	}, raw["sources"])
	assert.Equal(t, []any{}, raw["citations"])
	assert.Equal(t, "no_evidence", raw["evidence_outcome"])
}

func TestFeedback_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"learner_input":`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing learner input", `{"scenario_id":"s"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing scenario", `{"learner_input":"x"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"chain exhausted", `{"learner_input":"x","scenario_id":"s"}`, domain.ErrLLMChainExhausted, http.StatusServiceUnavailable, "LLM_UNAVAILABLE"},
		{"no llm", `{"learner_input":"x","scenario_id":"s"}`, domain.ErrLLMUnavailable, http.StatusServiceUnavailable, "LLM_UNAVAILABLE"},
		{"service invalid input", `{"learner_input":"x","scenario_id":"s"}`, domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unexpected", `{"learner_input":"x","scenario_id":"s"}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(&Ports{Feedback: &stubFeedback{err: tt.err}})
			require.NoError(t, err)

			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/feedback", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
}

func TestRetrieve(t *testing.T) {
	retrieval := &stubRetrieval{evidence: domain.Evidence{
		Outcome:        domain.OutcomeEvidenceFound,
		Results:        []domain.RetrievalResult{guideline()},
		Failures:       []domain.TierFailure{{Tier: domain.TierExternalSearch, Error: "rate limited"}},
		BelowThreshold: 2,
	}}
	s, err := NewServer(&Ports{Feedback: &stubFeedback{}, Retrieval: retrieval, Ranker: fixedRanker{}})
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/retrieve", `{"query":"vancomycin AUC","max_results":100,"external":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "vancomycin AUC", retrieval.got.Text)
	assert.Equal(t, maxRequestResults, retrieval.got.MaxResults)
	assert.True(t, retrieval.got.ForceExternal)

	got := decode[RetrieveResponse](t, rec)
	assert.Equal(t, "evidence_found", got.Outcome)
	assert.Equal(t, 2, got.BelowThreshold)
	assert.Equal(t, []string{"external_search: rate limited"}, got.SkippedTiers)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "local", got.Citations[0].Tier)
	assert.InDelta(t, 0.81, got.Citations[0].Similarity, 1e-9)
}

func TestRetrieve_Errors(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		s, err := NewServer(&Ports{Feedback: &stubFeedback{}, Retrieval: &stubRetrieval{}})
		require.NoError(t, err)

		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/retrieve", `{"query":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service failure", func(t *testing.T) {
		s, err := NewServer(&Ports{Feedback: &stubFeedback{}, Retrieval: &stubRetrieval{err: errors.New("closed")}})
		require.NoError(t, err)

		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/retrieve", `{"query":"q"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("not registered without retrieval", func(t *testing.T) {
		s, err := NewServer(&Ports{Feedback: &stubFeedback{}})
		require.NoError(t, err)

		rec := do(t, s.Handler(), http.MethodPost, "/api/v1/retrieve", `{"query":"q"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := NewServer(&Ports{Feedback: &stubFeedback{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

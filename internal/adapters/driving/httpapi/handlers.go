package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// maxRequestResults caps max_results on retrieve requests.
const maxRequestResults = 20

// excerptChars bounds the excerpt returned per citation.
const excerptChars = 400

// ScenarioContextBody is the optional scenario description of a feedback request.
type ScenarioContextBody struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	LearnerInput    string               `json:"learner_input" binding:"required"`
	ScenarioID      string               `json:"scenario_id" binding:"required"`
	ScenarioContext *ScenarioContextBody `json:"scenario_context"`
	DifficultyLevel string               `json:"difficulty_level"`
}

// FeedbackResponse is the body returned by POST /api/v1/feedback.
type FeedbackResponse struct {
	FeedbackText    string              `json:"feedback_text"`
	Sources         domain.SourceCounts `json:"sources"`
	Citations       []Citation          `json:"citations"`
	EvidenceOutcome string              `json:"evidence_outcome"`
	Backend         string              `json:"backend,omitempty"`
}

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
	External   bool   `json:"external"`
}

// RetrieveResponse is the body returned by POST /api/v1/retrieve.
type RetrieveResponse struct {
	Outcome        string     `json:"outcome"`
	Citations      []Citation `json:"citations"`
	SkippedTiers   []string   `json:"skipped_tiers,omitempty"`
	BelowThreshold int        `json:"below_threshold"`
}

// Citation is one piece of evidence in a response.
type Citation struct {
	DocumentID string  `json:"document_id"`
	Citation   string  `json:"citation"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	PMID       string  `json:"pmid,omitempty"`
	DOI        string  `json:"doi,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	StudyType  string  `json:"study_type,omitempty"`
	Tier       string  `json:"tier"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleFeedback handles POST /api/v1/feedback.
func (s *Server) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	scenario := domain.ScenarioContext{ScenarioID: req.ScenarioID}
	if req.ScenarioContext != nil {
		scenario.Title = req.ScenarioContext.Title
		scenario.Description = req.ScenarioContext.Description
		scenario.Objectives = req.ScenarioContext.Objectives
	}

	resp, err := s.ports.Feedback.Generate(c.Request.Context(), domain.FeedbackRequest{
		Scenario:        scenario,
		LearnerInput:    req.LearnerInput,
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := FeedbackResponse{
		FeedbackText:    resp.FeedbackText,
		Sources:         resp.Sources,
		Citations:       make([]Citation, len(resp.Citations)),
		EvidenceOutcome: string(resp.EvidenceOutcome),
		Backend:         resp.Backend,
	}
	for i, rc := range resp.Citations {
		out.Citations[i] = toCitation(rc)
	}
	c.JSON(http.StatusOK, out)
}

// handleRetrieve handles POST /api/v1/retrieve.
func (s *Server) handleRetrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "query is required")
		return
	}

	evidence, err := s.ports.Retrieval.Retrieve(c.Request.Context(), driving.RetrievalQuery{
		Text:          req.Query,
		MaxResults:    min(max(req.MaxResults, 0), maxRequestResults),
		ForceExternal: req.External,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := RetrieveResponse{
		Outcome:        string(evidence.Outcome),
		Citations:      []Citation{},
		BelowThreshold: evidence.BelowThreshold,
	}
	for _, f := range evidence.Failures {
		out.SkippedTiers = append(out.SkippedTiers, string(f.Tier)+": "+f.Error)
	}
	if s.ports.Ranker != nil {
		for _, rc := range s.ports.Ranker.Rank(evidence.Results) {
			out.Citations = append(out.Citations, toCitation(rc))
		}
	} else {
		for _, r := range evidence.Results {
			out.Citations = append(out.Citations, toCitation(domain.RankedCitation{Result: r}))
		}
	}
	c.JSON(http.StatusOK, out)
}

func toCitation(rc domain.RankedCitation) Citation {
	meta := rc.Result.Metadata
	excerpt := strings.Join(strings.Fields(rc.Result.Text), " ")
	if len(excerpt) > excerptChars {
		excerpt = domain.Truncate(excerpt, excerptChars) + "..."
	}
	return Citation{
		DocumentID: meta.DocumentID,
		Citation:   meta.Citation(),
		Title:      meta.Title,
		Year:       meta.Year,
		PMID:       meta.ExternalID,
		DOI:        meta.DOI,
		Filename:   meta.Filename,
		StudyType:  string(rc.StudyType),
		Tier:       string(rc.Result.Tier),
		Similarity: rc.Result.Similarity,
		Score:      rc.Score,
		Excerpt:    excerpt,
	}
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrLLMChainExhausted), errors.Is(err, domain.ErrLLMUnavailable):
		logger.Warn("feedback unavailable: %v", err)
		writeError(c, http.StatusServiceUnavailable, "LLM_UNAVAILABLE", err.Error())
	default:
		logger.Error("request failed: %v", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

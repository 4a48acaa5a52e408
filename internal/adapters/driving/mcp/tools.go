package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

// maxToolResults caps the results a tool call may ask for.
const maxToolResults = 20

// RetrieveInput is the input schema for the retrieve_evidence tool.
type RetrieveInput struct {
	Query      string `json:"query" jsonschema:"clinical question or learner text to find evidence for"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of sources to return (default 5)"`
	External   bool   `json:"external,omitempty" jsonschema:"also search PubMed even when local evidence suffices"`
}

// RetrieveOutput is the output schema for the retrieve_evidence tool.
type RetrieveOutput struct {
	Outcome  string           `json:"outcome"`
	Sources  []CitationOutput `json:"sources"`
	Count    int              `json:"count"`
	Skipped  []string         `json:"skipped_tiers,omitempty"`
	Filtered int              `json:"below_threshold,omitempty"`
}

// CitationOutput represents a single piece of evidence.
type CitationOutput struct {
	DocumentID string  `json:"document_id"`
	Citation   string  `json:"citation"`
	PMID       string  `json:"pmid,omitempty"`
	DOI        string  `json:"doi,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	StudyType  string  `json:"study_type,omitempty"`
	Tier       string  `json:"tier"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
}

// FeedbackInput is the input schema for the generate_feedback tool.
type FeedbackInput struct {
	LearnerInput    string   `json:"learner_input" jsonschema:"the learner's response to the scenario"`
	ScenarioID      string   `json:"scenario_id" jsonschema:"identifier of the scenario being answered"`
	ScenarioTitle   string   `json:"scenario_title,omitempty" jsonschema:"short title of the scenario"`
	ScenarioContext string   `json:"scenario_context,omitempty" jsonschema:"case description shown to the learner"`
	Objectives      []string `json:"objectives,omitempty" jsonschema:"learning objectives the feedback should address"`
	DifficultyLevel string   `json:"difficulty_level,omitempty" jsonschema:"beginner, intermediate or advanced"`
}

// FeedbackOutput is the output schema for the generate_feedback tool.
type FeedbackOutput struct {
	FeedbackText          string           `json:"feedback_text"`
	EvidenceOutcome       string           `json:"evidence_outcome"`
	ExpertCorrectionsUsed int              `json:"expert_corrections_used"`
	ExemplarsShown        int              `json:"exemplars_shown"`
	LiteratureCitations   int              `json:"literature_citations"`
	Citations             []CitationOutput `json:"citations"`
	Backend               string           `json:"backend,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_evidence",
		Description: "Find literature evidence for a clinical question, local library first, then PubMed",
	}, s.handleRetrieve)

	if s.ports.Feedback != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "generate_feedback",
			Description: "Generate evidence-grounded feedback on a learner's response to a stewardship scenario",
		}, s.handleFeedback)
	}
}

// handleRetrieve handles the retrieve_evidence tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if input.Query == "" {
		return nil, RetrieveOutput{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	evidence, err := s.ports.Retrieval.Retrieve(ctx, driving.RetrievalQuery{
		Text:          input.Query,
		MaxResults:    min(max(input.MaxResults, 0), maxToolResults),
		ForceExternal: input.External,
	})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Outcome:  string(evidence.Outcome),
		Filtered: evidence.BelowThreshold,
	}
	for _, f := range evidence.Failures {
		output.Skipped = append(output.Skipped, fmt.Sprintf("%s: %s", f.Tier, f.Error))
	}

	if s.ports.Ranker != nil {
		for _, c := range s.ports.Ranker.Rank(evidence.Results) {
			output.Sources = append(output.Sources, citationOutput(c))
		}
	} else {
		for _, r := range evidence.Results {
			output.Sources = append(output.Sources, citationOutput(domain.RankedCitation{Result: r}))
		}
	}
	if output.Sources == nil {
		output.Sources = []CitationOutput{}
	}
	output.Count = len(output.Sources)

	return nil, output, nil
}

// handleFeedback handles the generate_feedback tool invocation.
func (s *Server) handleFeedback(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FeedbackInput,
) (*mcp.CallToolResult, FeedbackOutput, error) {
	resp, err := s.ports.Feedback.Generate(ctx, domain.FeedbackRequest{
		Scenario: domain.ScenarioContext{
			ScenarioID:  input.ScenarioID,
			Title:       input.ScenarioTitle,
			Description: input.ScenarioContext,
			Objectives:  input.Objectives,
		},
		LearnerInput:    input.LearnerInput,
		DifficultyLevel: input.DifficultyLevel,
	})
	if err != nil {
		return nil, FeedbackOutput{}, err
	}

	output := FeedbackOutput{
		FeedbackText:          resp.FeedbackText,
		EvidenceOutcome:       string(resp.EvidenceOutcome),
		ExpertCorrectionsUsed: resp.Sources.ExpertCorrectionsUsed,
		ExemplarsShown:        resp.Sources.ExemplarsShown,
		LiteratureCitations:   resp.Sources.LiteratureCitations,
		Citations:             make([]CitationOutput, len(resp.Citations)),
		Backend:               resp.Backend,
	}
	for i, c := range resp.Citations {
		output.Citations[i] = citationOutput(c)
	}
	return nil, output, nil
}

// excerptChars bounds the excerpt returned per source.
const excerptChars = 400

func citationOutput(c domain.RankedCitation) CitationOutput {
	meta := c.Result.Metadata
	excerpt := c.Result.Text
	if len(excerpt) > excerptChars {
		excerpt = domain.Truncate(excerpt, excerptChars) + "..."
	}
	out := CitationOutput{
		DocumentID: meta.DocumentID,
		Citation:   meta.Citation(),
		PMID:       meta.ExternalID,
		DOI:        meta.DOI,
		Filename:   meta.Filename,
		Tier:       string(c.Result.Tier),
		Similarity: c.Result.Similarity,
		Score:      c.Score,
		Excerpt:    excerpt,
	}
	if c.StudyType != "" {
		out.StudyType = string(c.StudyType)
	}
	return out
}

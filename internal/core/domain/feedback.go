package domain

import (
	"fmt"
	"strings"
)

// ScenarioContext describes the case the learner is responding to.
// Owned by the scenario layer; the pipeline only reads it.
type ScenarioContext struct {
	ScenarioID  string `json:"scenario_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Objectives are the learning objectives the feedback should address.
	Objectives []string `json:"objectives,omitempty"`
}

// FeedbackRequest is the input to feedback generation.
type FeedbackRequest struct {
	Scenario        ScenarioContext `json:"scenario"`
	LearnerInput    string          `json:"learner_input"`
	DifficultyLevel string          `json:"difficulty_level"`
}

// Validate checks that the request can be served.
func (r FeedbackRequest) Validate() error {
	if strings.TrimSpace(r.LearnerInput) == "" {
		return fmt.Errorf("%w: learner_input is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Scenario.ScenarioID) == "" {
		return fmt.Errorf("%w: scenario_id is required", ErrInvalidInput)
	}
	return nil
}

// SourceCounts records how much of each evidence type went into a prompt.
type SourceCounts struct {
	ExpertCorrectionsUsed int `json:"expert_corrections_used"`
	ExemplarsShown        int `json:"exemplars_shown"`
	LiteratureCitations   int `json:"literature_citations"`
}

// FeedbackResponse is the generated feedback with provenance.
type FeedbackResponse struct {
	FeedbackText    string           `json:"feedback_text"`
	Sources         SourceCounts     `json:"sources"`
	Citations       []RankedCitation `json:"-"`
	EvidenceOutcome RetrievalOutcome `json:"evidence_outcome"`

	// Backend is the language model backend that produced the text.
	Backend string `json:"backend,omitempty"`
}

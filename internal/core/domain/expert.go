package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MasteryLevel grades an exemplar learner response.
type MasteryLevel string

// Mastery levels, lowest first.
const (
	MasteryEmerging   MasteryLevel = "emerging"
	MasteryDeveloping MasteryLevel = "developing"
	MasteryProficient MasteryLevel = "proficient"
	MasteryExemplary  MasteryLevel = "exemplary"
)

// IsValid returns true if the mastery level is recognised.
func (m MasteryLevel) IsValid() bool {
	switch m {
	case MasteryEmerging, MasteryDeveloping, MasteryProficient, MasteryExemplary:
		return true
	default:
		return false
	}
}

// Rank orders mastery levels; higher is better. Unknown levels rank 0.
func (m MasteryLevel) Rank() int {
	switch m {
	case MasteryEmerging:
		return 1
	case MasteryDeveloping:
		return 2
	case MasteryProficient:
		return 3
	case MasteryExemplary:
		return 4
	default:
		return 0
	}
}

// ExpertCorrection is a human reviewer's correction of AI feedback to a learner.
// Created by the import step; immutable thereafter; never auto-generated.
type ExpertCorrection struct {
	ID               string   `json:"correction_id" yaml:"correction_id"`
	ScenarioID       string   `json:"scenario_id" yaml:"scenario_id"`
	DifficultyLevel  string   `json:"difficulty_level" yaml:"difficulty_level"`
	CompetencyArea   string   `json:"competency_area" yaml:"competency_area"`
	LearnerInput     string   `json:"learner_input" yaml:"learner_input"`
	OriginalFeedback string   `json:"original_feedback" yaml:"original_feedback"`
	ExpertCorrection string   `json:"expert_correction" yaml:"expert_correction"`
	ExpertReasoning  string   `json:"expert_reasoning" yaml:"expert_reasoning"`
	MissedPoints     []string `json:"missed_points,omitempty" yaml:"missed_points,omitempty"`
	StrongPoints     []string `json:"strong_points,omitempty" yaml:"strong_points,omitempty"`
	ExpertName       string   `json:"expert_name" yaml:"expert_name"`
}

// Validate checks the fields required for a correction to be useful.
func (c *ExpertCorrection) Validate() error {
	switch {
	case strings.TrimSpace(c.ScenarioID) == "":
		return fmt.Errorf("%w: correction scenario_id is required", ErrInvalidInput)
	case strings.TrimSpace(c.LearnerInput) == "":
		return fmt.Errorf("%w: correction learner_input is required", ErrInvalidInput)
	case strings.TrimSpace(c.ExpertCorrection) == "":
		return fmt.Errorf("%w: correction expert_correction is required", ErrInvalidInput)
	}
	return nil
}

// Normalise gives missed and strong points set semantics.
func (c *ExpertCorrection) Normalise() {
	c.MissedPoints = StringSet(c.MissedPoints)
	c.StrongPoints = StringSet(c.StrongPoints)
}

// ExpertExemplar is a graded example learner response with commentary.
type ExpertExemplar struct {
	ID               string             `json:"exemplar_id" yaml:"exemplar_id"`
	ScenarioID       string             `json:"scenario_id" yaml:"scenario_id"`
	MasteryLevel     MasteryLevel       `json:"mastery_level" yaml:"mastery_level"`
	ResponseText     string             `json:"response_text" yaml:"response_text"`
	Commentary       string             `json:"commentary" yaml:"commentary"`
	CompetencyScores map[string]float64 `json:"competency_scores,omitempty" yaml:"competency_scores,omitempty"`
}

// Validate checks the fields required for an exemplar to be useful.
func (e *ExpertExemplar) Validate() error {
	switch {
	case strings.TrimSpace(e.ScenarioID) == "":
		return fmt.Errorf("%w: exemplar scenario_id is required", ErrInvalidInput)
	case strings.TrimSpace(e.ResponseText) == "":
		return fmt.Errorf("%w: exemplar response_text is required", ErrInvalidInput)
	case !e.MasteryLevel.IsValid():
		return fmt.Errorf("%w: exemplar mastery_level %q", ErrInvalidInput, e.MasteryLevel)
	}
	return nil
}

// ExpertMatch is a correction or exemplar returned by a similarity query.
type ExpertMatch[T any] struct {
	Entry      T
	Similarity float64
}

// ExpertKnowledge is the expert material retrieved for one feedback request.
type ExpertKnowledge struct {
	Corrections []ExpertMatch[ExpertCorrection]
	Exemplars   []ExpertMatch[ExpertExemplar]
}

// IsEmpty returns true if no expert material was found.
func (k ExpertKnowledge) IsEmpty() bool {
	return len(k.Corrections) == 0 && len(k.Exemplars) == 0
}

// ExpertImport is the on-disk shape of an expert knowledge import file.
type ExpertImport struct {
	Corrections []ExpertCorrection `json:"corrections" yaml:"corrections"`
	Exemplars   []ExpertExemplar   `json:"exemplars" yaml:"exemplars"`
}

// StringSet trims, dedupes and sorts a list of strings.
func StringSet(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// defaultDifficulty is used when a request names no difficulty level.
const defaultDifficulty = "intermediate"

// maxExcerptChars bounds each literature excerpt placed in the prompt.
const maxExcerptChars = 800

// PromptInput is everything the composer places into a feedback prompt.
type PromptInput struct {
	Request   domain.FeedbackRequest
	Citations []domain.RankedCitation
	Knowledge domain.ExpertKnowledge
	Outcome   domain.RetrievalOutcome
}

// PromptComposer assembles the feedback prompt from user-editable templates.
//
// Sections always appear in the same order: persona, anti-fabrication
// directive, literature (or the no-evidence disclosure), expert corrections,
// exemplars, learner input and response format.
type PromptComposer struct {
	prompts driven.PromptStore
}

// NewPromptComposer creates a composer backed by the given prompt store.
func NewPromptComposer(prompts driven.PromptStore) *PromptComposer {
	return &PromptComposer{prompts: prompts}
}

// Compose builds the prompt. It fails only when a template cannot be loaded.
func (c *PromptComposer) Compose(in PromptInput) (string, error) {
	if c.prompts == nil {
		return "", errors.New("no prompt store configured")
	}

	persona, err := c.load(driven.PromptFeedbackPersona)
	if err != nil {
		return "", err
	}
	antiFabrication, err := c.load(driven.PromptAntiFabrication)
	if err != nil {
		return "", err
	}
	format, err := c.load(driven.PromptFeedbackFormat)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(persona))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(antiFabrication))
	b.WriteString("\n\n")

	b.WriteString("## Literature Evidence\n\n")
	if len(in.Citations) == 0 {
		noEvidence, err := c.load(driven.PromptNoEvidence)
		if err != nil {
			return "", err
		}
		b.WriteString(strings.TrimSpace(noEvidence))
		if in.Outcome == domain.OutcomeEvidenceIrrelevant {
			b.WriteString("\nLocal sources were searched but none were relevant enough to cite.")
		}
		b.WriteString("\n\n")
	} else {
		b.WriteString("Cite these sources only, by their bracketed number.\n\n")
		for i := range in.Citations {
			writeCitation(&b, i+1, &in.Citations[i])
		}
	}

	if len(in.Knowledge.Corrections) > 0 {
		b.WriteString("## Expert Corrections\n\n")
		b.WriteString("Experts corrected earlier feedback on similar responses. Apply their judgement.\n\n")
		for i := range in.Knowledge.Corrections {
			writeCorrection(&b, i+1, &in.Knowledge.Corrections[i].Entry)
		}
	}

	if len(in.Knowledge.Exemplars) > 0 {
		b.WriteString("## Exemplar Responses\n\n")
		for i := range in.Knowledge.Exemplars {
			writeExemplar(&b, i+1, &in.Knowledge.Exemplars[i].Entry)
		}
	}

	b.WriteString("## Learner Response\n\n")
	writeScenario(&b, &in.Request.Scenario)
	b.WriteString(strings.TrimSpace(in.Request.LearnerInput))
	b.WriteString("\n\n")

	difficulty := strings.TrimSpace(in.Request.DifficultyLevel)
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	b.WriteString(strings.TrimSpace(fillPrompt(format, driven.PlaceholderDifficulty, difficulty)))
	b.WriteString("\n")

	return b.String(), nil
}

func (c *PromptComposer) load(name string) (string, error) {
	template, err := c.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load %s prompt: %w", name, err)
	}
	return template, nil
}

func writeCitation(b *strings.Builder, n int, c *domain.RankedCitation) {
	meta := &c.Result.Metadata
	fmt.Fprintf(b, "[%d] %s\n", n, meta.Citation())

	var ids []string
	if meta.ExternalID != "" {
		ids = append(ids, "PMID "+meta.ExternalID)
	}
	if meta.DOI != "" {
		ids = append(ids, "DOI "+meta.DOI)
	}
	if meta.Filename != "" {
		ids = append(ids, "file "+meta.Filename)
	}
	if len(ids) > 0 {
		fmt.Fprintf(b, "    Identifiers: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(b, "    Study type: %s\n", strings.ReplaceAll(string(c.StudyType), "_", " "))

	excerpt := strings.Join(strings.Fields(c.Result.Text), " ")
	if len(excerpt) > maxExcerptChars {
		excerpt = strings.TrimSpace(domain.Truncate(excerpt, maxExcerptChars)) + "..."
	}
	if excerpt != "" {
		fmt.Fprintf(b, "    Excerpt: %s\n", excerpt)
	}
	b.WriteString("\n")
}

func writeCorrection(b *strings.Builder, n int, c *domain.ExpertCorrection) {
	fmt.Fprintf(b, "Correction %d", n)
	if c.CompetencyArea != "" {
		fmt.Fprintf(b, " (%s)", c.CompetencyArea)
	}
	b.WriteString(":\n")
	fmt.Fprintf(b, "  Learner wrote: %s\n", oneLine(c.LearnerInput))
	if c.OriginalFeedback != "" {
		fmt.Fprintf(b, "  Earlier feedback: %s\n", oneLine(c.OriginalFeedback))
	}
	fmt.Fprintf(b, "  Expert correction: %s\n", oneLine(c.ExpertCorrection))
	if c.ExpertReasoning != "" {
		fmt.Fprintf(b, "  Reasoning: %s\n", oneLine(c.ExpertReasoning))
	}
	if len(c.MissedPoints) > 0 {
		fmt.Fprintf(b, "  Missed points: %s\n", strings.Join(c.MissedPoints, "; "))
	}
	if len(c.StrongPoints) > 0 {
		fmt.Fprintf(b, "  Strong points: %s\n", strings.Join(c.StrongPoints, "; "))
	}
	b.WriteString("\n")
}

func writeExemplar(b *strings.Builder, n int, e *domain.ExpertExemplar) {
	fmt.Fprintf(b, "Exemplar %d (%s):\n", n, e.MasteryLevel)
	fmt.Fprintf(b, "  Response: %s\n", oneLine(e.ResponseText))
	if e.Commentary != "" {
		fmt.Fprintf(b, "  Commentary: %s\n", oneLine(e.Commentary))
	}
	b.WriteString("\n")
}

func writeScenario(b *strings.Builder, s *domain.ScenarioContext) {
	if s.Title != "" {
		fmt.Fprintf(b, "Scenario: %s\n", s.Title)
	}
	if s.Description != "" {
		fmt.Fprintf(b, "Case: %s\n", oneLine(s.Description))
	}
	if len(s.Objectives) > 0 {
		b.WriteString("Learning objectives:\n")
		for _, o := range s.Objectives {
			fmt.Fprintf(b, "- %s\n", o)
		}
	}
	if s.Title != "" || s.Description != "" || len(s.Objectives) > 0 {
		b.WriteString("\nThe learner responded:\n")
	}
}

// fillPrompt replaces named placeholders in a user-editable template.
// Other text, including stray fmt verbs, is left alone.
func fillPrompt(template string, oldnew ...string) string {
	return strings.NewReplacer(oldnew...).Replace(template)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure FeedbackGenerator implements the interface.
var _ driving.FeedbackService = (*FeedbackGenerator)(nil)

// FeedbackGenerator grounds model feedback on retrieved literature and
// expert knowledge. Both lookups are optional: a missing or failing one
// leaves its prompt section empty.
type FeedbackGenerator struct {
	llm      driven.LLMService
	composer *PromptComposer

	retriever driving.RetrievalService
	ranker    driving.CitationRanker
	expert    driving.ExpertService

	maxCitations int
	maxTokens    int
	temperature  float64
}

// FeedbackOption configures a FeedbackGenerator.
type FeedbackOption func(*FeedbackGenerator)

// WithLiterature sets the literature retriever and the ranker ordering its results.
func WithLiterature(retriever driving.RetrievalService, ranker driving.CitationRanker) FeedbackOption {
	return func(g *FeedbackGenerator) {
		g.retriever = retriever
		g.ranker = ranker
	}
}

// WithExpertKnowledge sets the expert knowledge lookup.
func WithExpertKnowledge(expert driving.ExpertService) FeedbackOption {
	return func(g *FeedbackGenerator) {
		g.expert = expert
	}
}

// WithMaxCitations caps the literature sources placed in the prompt.
func WithMaxCitations(n int) FeedbackOption {
	return func(g *FeedbackGenerator) {
		if n > 0 {
			g.maxCitations = n
		}
	}
}

// WithGenerationLimits sets the token budget and temperature of the feedback call.
func WithGenerationLimits(maxTokens int, temperature float64) FeedbackOption {
	return func(g *FeedbackGenerator) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		if temperature >= 0 {
			g.temperature = temperature
		}
	}
}

// NewFeedbackGenerator creates a feedback generator.
func NewFeedbackGenerator(llm driven.LLMService, composer *PromptComposer, opts ...FeedbackOption) *FeedbackGenerator {
	g := &FeedbackGenerator{
		llm:          llm,
		composer:     composer,
		maxCitations: domain.DefaultMaxResults,
		maxTokens:    1500,
		temperature:  0.3,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces feedback on the learner input. Retrieval and expert
// failures degrade the prompt; only a failed model call is returned.
func (g *FeedbackGenerator) Generate(ctx context.Context, req domain.FeedbackRequest) (*domain.FeedbackResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if g.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	logger.Section("Feedback Generation")

	var (
		evidence  = domain.Evidence{Outcome: domain.OutcomeNoEvidence}
		knowledge domain.ExpertKnowledge
		group     errgroup.Group
	)
	group.Go(func() error {
		evidence = g.lookupLiterature(ctx, req)
		return nil
	})
	group.Go(func() error {
		knowledge = g.lookupExpert(ctx, req)
		return nil
	})
	_ = group.Wait()

	var citations []domain.RankedCitation
	if len(evidence.Results) > 0 {
		if g.ranker != nil {
			citations = g.ranker.Rank(evidence.Results)
		} else {
			citations = domain.UnrankedCitations(evidence.Results)
		}
		if len(citations) > g.maxCitations {
			citations = citations[:g.maxCitations]
		}
	}

	prompt, err := g.composer.Compose(PromptInput{
		Request:   req,
		Citations: citations,
		Knowledge: knowledge,
		Outcome:   evidence.Outcome,
	})
	if err != nil {
		return nil, fmt.Errorf("compose prompt: %w", err)
	}

	text, backend, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}
	if len(citations) == 0 {
		text = StripReferences(text)
	}

	resp := &domain.FeedbackResponse{
		FeedbackText: strings.TrimSpace(text),
		Sources: domain.SourceCounts{
			ExpertCorrectionsUsed: len(knowledge.Corrections),
			ExemplarsShown:        len(knowledge.Exemplars),
			LiteratureCitations:   len(citations),
		},
		Citations:       citations,
		EvidenceOutcome: evidence.Outcome,
		Backend:         backend,
	}

	logger.With("scenario_id", req.Scenario.ScenarioID, "backend", backend).Info("generated feedback",
		"citations", resp.Sources.LiteratureCitations,
		"corrections", resp.Sources.ExpertCorrectionsUsed,
		"exemplars", resp.Sources.ExemplarsShown)
	return resp, nil
}

// lookupLiterature queries with the learner's own words.
func (g *FeedbackGenerator) lookupLiterature(ctx context.Context, req domain.FeedbackRequest) domain.Evidence {
	if g.retriever == nil {
		return domain.Evidence{Outcome: domain.OutcomeNoEvidence}
	}
	ev, err := g.retriever.Retrieve(ctx, driving.RetrievalQuery{Text: req.LearnerInput, MaxResults: g.maxCitations})
	if err != nil {
		logger.Warn("Literature lookup failed, continuing without it: %v", err)
		return domain.Evidence{Outcome: domain.OutcomeNoEvidence}
	}
	return ev
}

func (g *FeedbackGenerator) lookupExpert(ctx context.Context, req domain.FeedbackRequest) domain.ExpertKnowledge {
	if g.expert == nil {
		return domain.ExpertKnowledge{}
	}
	knowledge, err := g.expert.Find(ctx, driving.ExpertQuery{
		Text:            req.LearnerInput,
		ScenarioID:      req.Scenario.ScenarioID,
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		logger.Warn("Expert knowledge lookup failed, continuing without it: %v", err)
		return domain.ExpertKnowledge{}
	}
	return knowledge
}

func (g *FeedbackGenerator) generate(ctx context.Context, prompt string) (text, backend string, err error) {
	opts := driven.GenerateOptions{MaxTokens: g.maxTokens, Temperature: g.temperature}
	if reporter, ok := g.llm.(driven.BackendReporter); ok {
		return reporter.GenerateWithBackend(ctx, prompt, opts)
	}
	text, err = g.llm.Generate(ctx, prompt, opts)
	return text, g.llm.ModelName(), err
}

// referenceLabel matches the labels models put in front of a reference list,
// optionally qualified ("Key References", "Selected readings").
const referenceLabel = `(?:(?:key|selected|suggested|recommended|further|additional|supporting)\s+)*` +
	`(?:references|bibliography|works cited|literature cited|sources(?: cited)?|citations|further reading)`

var (
	referencesHeadingRe = regexp.MustCompile(`(?i)^\s{0,3}(?:` +
		`#{1,6}\s*(?:\*\*|__)?\s*` + referenceLabel + `\b` +
		`|(?:\*\*|__)\s*` + referenceLabel + `\s*:?\s*(?:\*\*|__)` +
		`|` + referenceLabel + `\s*:` +
		`|` + referenceLabel + `\s*$)`)
	headingRe          = regexp.MustCompile(`^\s{0,3}(#{1,6}\s+\S|(\*\*|__)[^*_]+(\*\*|__)\s*:?\s*$)`)
	citationMarkerRe   = regexp.MustCompile(`\s?\[\d+(\s*[,-]\s*\d+)*\]`)
	proseCitationRe    = regexp.MustCompile(`\s?\([^()]*?(?:\b[A-Z][A-Za-z'-]+(?:\s+et\s+al\.?,?|\s+(?:and|&)\s+[A-Z][A-Za-z'-]+,?|,)\s+(?:19|20)\d{2}[a-z]?\b|(?i:\bpmid):?\s*\d+|(?i:\bdoi):\s*10\.\d+)[^()]*\)`)
	identifierTokenRe  = regexp.MustCompile(`(?i)\s?(?:\bpmid:?\s*\d+|\bdoi:\s*10\.\d{4,9}/[^\s)\];,]*[^\s)\];,.]|https?://(?:dx\.)?doi\.org/10\.\d{4,9}/[^\s)\];,]*[^\s)\];,.])`)
	emptyParensRe      = regexp.MustCompile(`\s?\(\s*[;,]?\s*\)`)
	spaceBeforePunctRe = regexp.MustCompile(` +([.,;:])`)
	blankLinesRe       = regexp.MustCompile(`\n{3,}`)
)

// StripReferences removes reference list sections, bracketed citation
// markers, author-year citations and PMID or DOI identifiers from model
// output. It is applied when no literature was supplied, so anything of that
// shape is invented.
func StripReferences(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	skipping := false
	for _, line := range lines {
		if referencesHeadingRe.MatchString(line) {
			skipping = true
			continue
		}
		if skipping {
			if !headingRe.MatchString(line) {
				continue
			}
			skipping = false
		}
		out = append(out, line)
	}
	stripped := strings.Join(out, "\n")
	for _, re := range []*regexp.Regexp{citationMarkerRe, proseCitationRe, identifierTokenRe, emptyParensRe} {
		stripped = re.ReplaceAllString(stripped, "")
	}
	stripped = spaceBeforePunctRe.ReplaceAllString(stripped, "$1")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(stripped, "\n\n"))
}

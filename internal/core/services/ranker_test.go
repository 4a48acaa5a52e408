package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

func rankerAt(year int) *CitationRanker {
	return &CitationRanker{now: func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }}
}

func result(filename, title string, year int, similarity float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		Text: "body text",
		Metadata: domain.PaperMetadata{
			DocumentID: domain.DocumentIDForFilename(filename),
			Filename:   filename,
			Title:      title,
			Year:       year,
		},
		Similarity: similarity,
		Tier:       domain.TierLocal,
	}
}

func TestInferStudyType(t *testing.T) {
	tests := []struct {
		title    string
		abstract string
		want     domain.StudyType
	}{
		{"IDSA clinical practice guideline for vancomycin monitoring", "", domain.StudyGuideline},
		{"Procalcitonin to shorten antibiotics: a meta-analysis", "", domain.StudyMetaAnalysis},
		{"Short versus long courses: a systematic review", "", domain.StudySystematic},
		{"A randomized trial of 7 versus 14 days for bacteremia", "", domain.StudyRandomized},
		{"Outcomes of penicillin allergy delabeling", "We conducted a retrospective cohort of 500 patients.", domain.StudyCohort},
		{"Risk factors for C. difficile: a case-control study", "", domain.StudyCaseControl},
		{"A cross-sectional survey of stewardship programs", "", domain.StudyCrossSectional},
		{"Daptomycin failure: a case report", "", domain.StudyCaseSeries},
		{"Antifungal stewardship: a narrative review", "", domain.StudyNarrative},
		{"Stewardship at a crossroads: an editorial", "", domain.StudyOpinion},
		{"Vancomycin dosing in obesity", "", domain.StudyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			res := domain.RetrievalResult{Metadata: domain.PaperMetadata{Title: tt.title}, Abstract: tt.abstract}
			assert.Equal(t, tt.want, InferStudyType(res))
		})
	}
}

func TestInferStudyType_TitleWinsOverBody(t *testing.T) {
	res := domain.RetrievalResult{
		Metadata: domain.PaperMetadata{Title: "Beta-lactam allergy: a systematic review"},
		Text:     "Included randomized trials and cohort studies.",
	}
	assert.Equal(t, domain.StudySystematic, InferStudyType(res))
}

func TestRecencyBonus(t *testing.T) {
	assert.InDelta(t, 0.2, RecencyBonus(2026, 2026), 1e-9)
	assert.InDelta(t, 0.1, RecencyBonus(2021, 2026), 1e-9)
	assert.Zero(t, RecencyBonus(2010, 2026))
	assert.Zero(t, RecencyBonus(0, 2026))
	assert.InDelta(t, 0.2, RecencyBonus(2027, 2026), 1e-9, "future years count as current")
}

func TestStudyWeight(t *testing.T) {
	assert.Equal(t, 1.0, StudyWeight(domain.StudyGuideline))
	assert.Equal(t, 0.3, StudyWeight(domain.StudyUnknown))
	assert.Equal(t, 0.3, StudyWeight("made_up"))
	assert.Greater(t, StudyWeight(domain.StudyRandomized), StudyWeight(domain.StudyCaseSeries))
	assert.Greater(t, StudyWeight(domain.StudySystematic), StudyWeight(domain.StudyOpinion))
}

func TestCitationRanker_Rank(t *testing.T) {
	r := rankerAt(2026)
	results := []domain.RetrievalResult{
		result("opinion.pdf", "Stewardship is dead: an editorial", 2025, 0.9),
		result("rct.pdf", "A randomized trial of procalcitonin guidance", 2018, 0.6),
		result("guideline.pdf", "IDSA guideline on febrile neutropenia", 2010, 0.5),
	}

	ranked := r.Rank(results)

	require.Len(t, ranked, 3)
	assert.Equal(t, "guideline.pdf", ranked[0].Result.Metadata.Filename)
	assert.Equal(t, "rct.pdf", ranked[1].Result.Metadata.Filename)
	assert.Equal(t, "opinion.pdf", ranked[2].Result.Metadata.Filename)

	// 0.85 + (0.2 - 0.16) + 0.06
	assert.InDelta(t, 0.95, ranked[1].Score, 1e-9)
	assert.Equal(t, domain.StudyRandomized, ranked[1].StudyType)
}

func TestCitationRanker_DifferentFilenamesNeverCollapse(t *testing.T) {
	r := rankerAt(2026)
	// Neither document has an external identifier and the titles match.
	results := []domain.RetrievalResult{
		result("stewardship-notes-a.pdf", "Untitled stewardship notes", 0, 0.5),
		result("stewardship-notes-b.pdf", "Untitled stewardship notes", 0, 0.5),
	}

	ranked := r.Rank(results)

	assert.Len(t, ranked, 2)
}

func TestCitationRanker_DedupesSameDocument(t *testing.T) {
	r := rankerAt(2026)
	a := result("vanco.pdf", "Vancomycin AUC dosing", 2020, 0.4)
	b := result("vanco.pdf", "Vancomycin AUC dosing", 2020, 0.7)
	ext := domain.RetrievalResult{
		Text:       "abstract",
		Metadata:   domain.PaperMetadata{DocumentID: "pmid:1", ExternalID: "1", Title: "Another paper", Year: 2020},
		Similarity: 0.3,
		Tier:       domain.TierExternalSearch,
	}
	dup := ext
	dup.Similarity = 0.2

	ranked := r.Rank([]domain.RetrievalResult{a, ext, b, dup})

	require.Len(t, ranked, 2)
	for _, c := range ranked {
		if c.Result.Metadata.Filename == "vanco.pdf" {
			assert.Equal(t, 0.7, c.Result.Similarity, "keeps the best chunk")
		} else {
			assert.Equal(t, 0.3, c.Result.Similarity)
		}
	}
}

func TestCitationRanker_DeterministicTieBreak(t *testing.T) {
	r := rankerAt(2026)
	results := []domain.RetrievalResult{
		result("b.pdf", "Vancomycin dosing in obesity", 2010, 0.5),
		result("a.pdf", "Vancomycin dosing in children", 2010, 0.5),
		result("c.pdf", "Vancomycin dosing in dialysis", 2011, 0.5),
	}

	first := r.Rank(results)
	second := r.Rank([]domain.RetrievalResult{results[2], results[0], results[1]})

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	// Same score and similarity; newer year first, then document ID.
	assert.Equal(t, "c.pdf", first[0].Result.Metadata.Filename)
	if domain.DocumentIDForFilename("a.pdf") < domain.DocumentIDForFilename("b.pdf") {
		assert.Equal(t, "a.pdf", first[1].Result.Metadata.Filename)
	} else {
		assert.Equal(t, "b.pdf", first[1].Result.Metadata.Filename)
	}
}

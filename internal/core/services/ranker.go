package services

import (
	"regexp"
	"sort"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

// Ensure CitationRanker implements the interface.
var _ driving.CitationRanker = (*CitationRanker)(nil)

// Ranking weights.
const (
	maxRecencyBonus      = 0.2
	recencyDecayPerYear  = 0.02
	similarityWeight     = 0.1
	studyTypeSampleChars = 4000
)

// studyWeights is the evidence hierarchy.
var studyWeights = map[domain.StudyType]float64{
	domain.StudyGuideline:      1.0,
	domain.StudyMetaAnalysis:   1.0,
	domain.StudySystematic:     0.95,
	domain.StudyRandomized:     0.85,
	domain.StudyCohort:         0.7,
	domain.StudyCaseControl:    0.6,
	domain.StudyCrossSectional: 0.5,
	domain.StudyCaseSeries:     0.4,
	domain.StudyNarrative:      0.35,
	domain.StudyOpinion:        0.2,
	domain.StudyUnknown:        0.3,
}

// studyPatterns are checked in order; the first match wins.
var studyPatterns = []struct {
	kind domain.StudyType
	re   *regexp.Regexp
}{
	{domain.StudyGuideline, regexp.MustCompile(`(?i)\b(clinical practice guidelines?|guidelines?\b|consensus statement|practice parameter|position statement)`)},
	{domain.StudyMetaAnalysis, regexp.MustCompile(`(?i)\bmeta-?analy(sis|ses|tic)\b`)},
	{domain.StudySystematic, regexp.MustCompile(`(?i)\b(systematic(al)? review|cochrane review|umbrella review)\b`)},
	{domain.StudyRandomized, regexp.MustCompile(`(?i)\b(randomi[sz]ed|randomly assigned|RCT|controlled trial)\b`)},
	{domain.StudyCohort, regexp.MustCompile(`(?i)\b(cohort|prospective(ly)? (study|observational)|retrospective(ly)? (study|review|analysis)|longitudinal study)\b`)},
	{domain.StudyCaseControl, regexp.MustCompile(`(?i)\bcase[- ]control\b`)},
	{domain.StudyCrossSectional, regexp.MustCompile(`(?i)\b(cross[- ]sectional|point[- ]prevalence|prevalence survey)\b`)},
	{domain.StudyCaseSeries, regexp.MustCompile(`(?i)\b(case series|case reports?)\b`)},
	{domain.StudyNarrative, regexp.MustCompile(`(?i)\b(narrative review|literature review|review)\b`)},
	{domain.StudyOpinion, regexp.MustCompile(`(?i)\b(editorial|commentary|viewpoint|perspective|expert opinion|letter to the editor)\b`)},
}

// CitationRanker scores evidence by study design, recency and similarity.
type CitationRanker struct {
	now func() time.Time
}

// NewCitationRanker creates a ranker using the current year for recency.
func NewCitationRanker() *CitationRanker {
	return &CitationRanker{now: time.Now}
}

// Rank dedupes results by document identity and orders them strongest first.
// Ties are broken by similarity, then newer year, then document ID.
func (r *CitationRanker) Rank(results []domain.RetrievalResult) []domain.RankedCitation {
	unique := dedupeResults(results)
	currentYear := r.now().Year()

	ranked := make([]domain.RankedCitation, 0, len(unique))
	for _, res := range unique {
		kind := InferStudyType(res)
		ranked = append(ranked, domain.RankedCitation{
			Result:    res,
			StudyType: kind,
			Score:     StudyWeight(kind) + RecencyBonus(res.Metadata.Year, currentYear) + similarityWeight*res.Similarity,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Result.Similarity != b.Result.Similarity {
			return a.Result.Similarity > b.Result.Similarity
		}
		if a.Result.Metadata.Year != b.Result.Metadata.Year {
			return a.Result.Metadata.Year > b.Result.Metadata.Year
		}
		return a.Result.Metadata.DocumentID < b.Result.Metadata.DocumentID
	})
	return ranked
}

// InferStudyType classifies a result by its title, falling back to its
// abstract and text.
func InferStudyType(res domain.RetrievalResult) domain.StudyType {
	if kind := matchStudyType(res.Metadata.Title); kind != domain.StudyUnknown {
		return kind
	}
	body := res.Abstract + "\n" + res.Text
	if len(body) > studyTypeSampleChars {
		body = domain.Truncate(body, studyTypeSampleChars)
	}
	return matchStudyType(body)
}

func matchStudyType(text string) domain.StudyType {
	if text == "" {
		return domain.StudyUnknown
	}
	for _, p := range studyPatterns {
		if p.re.MatchString(text) {
			return p.kind
		}
	}
	return domain.StudyUnknown
}

// StudyWeight returns the evidence hierarchy weight of a study type.
func StudyWeight(kind domain.StudyType) float64 {
	if w, ok := studyWeights[kind]; ok {
		return w
	}
	return studyWeights[domain.StudyUnknown]
}

// RecencyBonus rewards recent publications: 0.2 this year, 0.02 less per
// year of age, never negative. Unknown years get nothing.
func RecencyBonus(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := currentYear - year
	if age < 0 {
		age = 0
	}
	return max(0, maxRecencyBonus-recencyDecayPerYear*float64(age))
}

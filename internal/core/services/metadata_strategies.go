package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// MetadataStrategy is one tier of metadata extraction.
// It returns a candidate, or an error wrapping ErrExtractionFailure
// when it has nothing to offer.
type MetadataStrategy interface {
	Method() domain.ExtractionMethod
	Extract(ctx context.Context, doc *domain.SourceDocument) (*domain.PaperMetadata, error)
}

var (
	yearRe      = regexp.MustCompile(`\b(19[5-9]\d|20\d\d)\b`)
	doiRe       = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[^\s"'<>]+)`)
	pmidRe      = regexp.MustCompile(`(?i)\bPMID:?\s*(\d{5,9})\b`)
	pmcidRe     = regexp.MustCompile(`\b(PMC\d{5,9})\b`)
	citationRe  = regexp.MustCompile(`([A-Z][A-Za-z .&]+?)\.?\s+((?:19|20)\d\d)[^;\n]{0,20};\s*(\d+)\s*(?:\([^)]*\))?\s*:\s*([A-Za-z]?\d+(?:\s*[-–]\s*[A-Za-z]?\d+)?)`)
	journalRe   = regexp.MustCompile(`(?i)^((?:the\s+)?(?:journal|annals|archives|proceedings|bulletin)\s+of\s+[\w\s&,-]{3,80}|[\w\s&-]{3,60}\s+journal(?:\s+of\s+[\w\s&-]{3,60})?)$`)
	superscript = regexp.MustCompile(`[\d*†‡§¶,]+$`)
)

// EmbeddedStrategy reads the document's embedded properties
// (PDF Info dictionary, HTML citation meta tags, front matter).
type EmbeddedStrategy struct{}

// Method implements MetadataStrategy.
func (EmbeddedStrategy) Method() domain.ExtractionMethod { return domain.ExtractionEmbedded }

// Extract implements MetadataStrategy.
func (EmbeddedStrategy) Extract(_ context.Context, doc *domain.SourceDocument) (*domain.PaperMetadata, error) {
	props := doc.Properties
	title := cleanLine(props["title"])
	if title == "" {
		return nil, fmt.Errorf("%w: no embedded title", domain.ErrExtractionFailure)
	}

	meta := &domain.PaperMetadata{
		Title:      title,
		Authors:    splitAuthors(props["author"]),
		Venue:      cleanLine(props["journal"]),
		Volume:     strings.TrimSpace(props["volume"]),
		ExternalID: strings.TrimSpace(props["pmid"]),
		DOI:        cleanDOI(props["doi"]),
	}
	if first, last := strings.TrimSpace(props["firstpage"]), strings.TrimSpace(props["lastpage"]); first != "" {
		meta.Pages = first
		if last != "" && last != first {
			meta.Pages = first + "-" + last
		}
	}
	for _, key := range []string{"year", "date"} {
		if meta.Year == 0 {
			meta.Year = findYear(props[key])
		}
	}

	// The PDF subject field often holds the citation line.
	if subject := props["subject"]; subject != "" {
		applyCitation(meta, subject)
	}
	for _, key := range []string{"subject", "keywords", "identifier", "description"} {
		if meta.DOI == "" {
			meta.DOI = findDOI(props[key])
		}
	}
	return meta, nil
}

// ParsedStrategy parses title, authors and journal from the first pages.
type ParsedStrategy struct {
	// MaxLines bounds how far into the text the title is searched for.
	MaxLines int
}

// Method implements MetadataStrategy.
func (ParsedStrategy) Method() domain.ExtractionMethod { return domain.ExtractionParsed }

// Extract implements MetadataStrategy.
func (s ParsedStrategy) Extract(_ context.Context, doc *domain.SourceDocument) (*domain.PaperMetadata, error) {
	maxLines := s.MaxLines
	if maxLines <= 0 {
		maxLines = 40
	}

	lines := headLines(doc.FirstPages, maxLines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no first-page text", domain.ErrExtractionFailure)
	}

	meta := &domain.PaperMetadata{}

	// Journal header lines usually precede the title.
	titleIdx := -1
	for i, line := range lines {
		if meta.Venue == "" && journalRe.MatchString(line) {
			meta.Venue = line
			continue
		}
		if applyCitation(meta, line) {
			continue
		}
		if looksLikeTitle(line) {
			titleIdx = i
			break
		}
	}
	if titleIdx < 0 {
		return nil, fmt.Errorf("%w: no title-like line", domain.ErrExtractionFailure)
	}

	// A title may wrap onto a second line.
	title := lines[titleIdx]
	next := titleIdx + 1
	if next < len(lines) && continuesTitle(title, lines[next]) {
		title = title + " " + lines[next]
		next++
	}
	meta.Title = title

	if next < len(lines) {
		if authors := parseAuthorLine(lines[next]); len(authors) > 0 {
			meta.Authors = authors
		}
	}
	if meta.Venue == "" {
		applyCitation(meta, doc.FirstPages)
	}
	return meta, nil
}

// GenerativeStrategy asks a language model for structured metadata.
type GenerativeStrategy struct {
	LLM     driven.LLMService
	Prompts driven.PromptStore

	// MaxInputChars bounds the first-page text sent to the model.
	MaxInputChars int
}

// Method implements MetadataStrategy.
func (GenerativeStrategy) Method() domain.ExtractionMethod { return domain.ExtractionGenerative }

// Extract implements MetadataStrategy.
func (s GenerativeStrategy) Extract(ctx context.Context, doc *domain.SourceDocument) (*domain.PaperMetadata, error) {
	if s.LLM == nil || s.Prompts == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, domain.ErrLLMUnavailable)
	}
	text := strings.TrimSpace(doc.FirstPages)
	if text == "" {
		return nil, fmt.Errorf("%w: no first-page text", domain.ErrExtractionFailure)
	}
	limit := s.MaxInputChars
	if limit <= 0 {
		limit = 4000
	}
	if len(text) > limit {
		text = domain.Truncate(text, limit)
	}

	template, err := s.Prompts.Load(driven.PromptMetadataExtraction)
	if err != nil {
		return nil, fmt.Errorf("load metadata prompt: %w", err)
	}
	prompt := fillPrompt(template,
		driven.PlaceholderFilename, doc.Filename,
		driven.PlaceholderText, text,
	)
	if !strings.Contains(template, driven.PlaceholderText) {
		prompt += "\n\n" + text
	}

	out, err := s.LLM.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 512, Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}
	return parseGenerativeMetadata(out)
}

// generativeMetadata is the JSON shape the extraction prompt asks for.
// Models are inconsistent about types, so lenient fields are raw.
type generativeMetadata struct {
	Title   string          `json:"title"`
	Authors json.RawMessage `json:"authors"`
	Journal string          `json:"journal"`
	Year    json.RawMessage `json:"year"`
	Volume  json.RawMessage `json:"volume"`
	Pages   string          `json:"pages"`
	DOI     string          `json:"doi"`
	PMID    json.RawMessage `json:"pmid"`
}

// parseGenerativeMetadata decodes a model response, tolerating code fences
// and text around the JSON object.
func parseGenerativeMetadata(out string) (*domain.PaperMetadata, error) {
	start := strings.IndexByte(out, '{')
	end := strings.LastIndexByte(out, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model response", domain.ErrExtractionFailure)
	}

	var raw generativeMetadata
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode model response: %w", domain.ErrExtractionFailure, err)
	}

	meta := &domain.PaperMetadata{
		Title:      cleanLine(raw.Title),
		Authors:    rawAuthors(raw.Authors),
		Venue:      cleanLine(raw.Journal),
		Volume:     rawString(raw.Volume),
		Pages:      strings.TrimSpace(raw.Pages),
		DOI:        cleanDOI(raw.DOI),
		ExternalID: digitsOnly(rawString(raw.PMID)),
	}
	if y, err := strconv.Atoi(rawString(raw.Year)); err == nil && y > 0 {
		meta.Year = y
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("%w: model returned no title", domain.ErrExtractionFailure)
	}
	return meta, nil
}

func rawString(msg json.RawMessage) string {
	if len(msg) == 0 || string(msg) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawAuthors(msg json.RawMessage) []string {
	if len(msg) == 0 || string(msg) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(msg, &list); err == nil {
		var out []string
		for _, a := range list {
			if a = cleanLine(a); a != "" {
				out = append(out, a)
			}
		}
		return out
	}
	return splitAuthors(rawString(msg))
}

// enrichFromText fills year, DOI, PMID and PMCID from text where missing.
func enrichFromText(meta *domain.PaperMetadata, texts ...string) {
	for _, text := range texts {
		if meta.DOI == "" {
			meta.DOI = findDOI(text)
		}
		if meta.ExternalID == "" {
			if m := pmidRe.FindStringSubmatch(text); m != nil {
				meta.ExternalID = m[1]
			}
		}
		if meta.PMCID == "" {
			if m := pmcidRe.FindStringSubmatch(text); m != nil {
				meta.PMCID = m[1]
			}
		}
		if meta.Year == 0 {
			meta.Year = findYear(text)
		}
	}
}

// applyCitation fills venue, year, volume and pages from a
// "Journal. 2020;71(3):123-130" style citation. It reports whether one was found.
func applyCitation(meta *domain.PaperMetadata, text string) bool {
	m := citationRe.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	if meta.Venue == "" {
		meta.Venue = strings.TrimSpace(m[1])
	}
	if meta.Year == 0 {
		meta.Year, _ = strconv.Atoi(m[2])
	}
	if meta.Volume == "" {
		meta.Volume = m[3]
	}
	if meta.Pages == "" {
		meta.Pages = strings.ReplaceAll(strings.ReplaceAll(m[4], " ", ""), "–", "-")
	}
	return true
}

func findYear(text string) int {
	if text == "" {
		return 0
	}
	y, err := strconv.Atoi(yearRe.FindString(text))
	if err != nil {
		return 0
	}
	return y
}

func findDOI(text string) string {
	if m := doiRe.FindStringSubmatch(text); m != nil {
		return cleanDOI(m[1])
	}
	return ""
}

func cleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://dx.doi.org/")
	doi = strings.TrimPrefix(strings.TrimPrefix(doi, "doi:"), "DOI:")
	return strings.TrimRight(strings.TrimSpace(doi), ".,;)]")
}

func digitsOnly(s string) string {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return s
}

// splitAuthors splits an author field on semicolons or "and"; a single
// comma-separated list is split only when its parts look like full names.
func splitAuthors(field string) []string {
	field = cleanLine(field)
	if field == "" {
		return nil
	}
	var parts []string
	switch {
	case strings.Contains(field, ";"):
		parts = strings.Split(field, ";")
	case strings.Contains(field, ","):
		parts = strings.Split(strings.ReplaceAll(field, " and ", ", "), ",")
		multiWord := 0
		for _, p := range parts {
			if strings.Contains(strings.TrimSpace(p), " ") {
				multiWord++
			}
		}
		if multiWord < 2 {
			// "Smith, John" is one name.
			parts = []string{field}
		}
	default:
		parts = strings.Split(field, " and ")
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(superscript.ReplaceAllString(strings.TrimSpace(p), "")); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAuthorLine accepts a line only if most of its comma-separated parts
// look like personal names.
func parseAuthorLine(line string) []string {
	if strings.HasSuffix(line, ".") && !strings.Contains(line, ",") {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(line, " and ", ", "), ",")
	var names []string
	for _, p := range parts {
		p = strings.TrimSpace(superscript.ReplaceAllString(strings.TrimSpace(p), ""))
		if p == "" {
			continue
		}
		if !looksLikeName(p) {
			return nil
		}
		names = append(names, p)
	}
	if len(names) == 1 && !hasInitial(names[0]) {
		return nil
	}
	return names
}

func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
		for _, c := range r {
			if unicode.IsDigit(c) {
				return false
			}
		}
	}
	return true
}

// hasInitial reports whether a name contains an initial such as "J" or "J.".
func hasInitial(name string) bool {
	for _, w := range strings.Fields(name) {
		w = strings.ReplaceAll(w, ".", "")
		if w != "" && len(w) <= 2 && strings.ToUpper(w) == w {
			return true
		}
	}
	return false
}

func looksLikeTitle(line string) bool {
	if CheckTitleQuality(line) != nil {
		return false
	}
	if parseAuthorLine(line) != nil {
		return false
	}
	lower := strings.ToLower(line)
	for _, prefix := range []string{"abstract", "keywords", "original article", "research article", "review article", "received", "vol", "volume", "issn"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return len(strings.Fields(line)) >= 3
}

// continuesTitle reports whether next looks like the wrapped second line of title.
func continuesTitle(title, next string) bool {
	if strings.HasSuffix(title, ".") || strings.HasSuffix(title, "?") {
		return false
	}
	if parseAuthorLine(next) != nil || CheckTitleQuality(title+" "+next) != nil {
		return false
	}
	r := []rune(next)
	if len(r) == 0 {
		return false
	}
	// Wrapped lines tend to start lower-case or be noticeably shorter.
	return unicode.IsLower(r[0]) || strings.HasSuffix(title, ":") || len(next) < len(title)/2
}

func headLines(text string, max int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = cleanLine(line); line != "" {
			lines = append(lines, line)
			if len(lines) == max {
				break
			}
		}
	}
	return lines
}

// cleanLine collapses internal whitespace.
func cleanLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isExtractionFailure reports whether err is a non-fatal tier failure.
func isExtractionFailure(err error) bool {
	return errors.Is(err, domain.ErrExtractionFailure)
}

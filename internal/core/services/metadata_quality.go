package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// Title length bounds in characters.
const (
	minTitleLength = 10
	maxTitleLength = 300
)

var (
	urlFragmentRe = regexp.MustCompile(`(?i)(\bhttps?\b|\bwww\.|\.(com|org|net)\b|\bdoi\.org\b)`)

	// "(c)" counts only when followed by a year or "copyright".
	copyrightRe = regexp.MustCompile(
		`(?i)(©|\(c\)\s*(\d{4}|copyright)|\bcopyright\b|\ball rights reserved\b|\blicensed under\b|\bcreative commons\b)`)

	navigationRe = regexp.MustCompile(`(?i)\b(downloaded from|click here|table of contents|skip to|` +
		`accepted manuscript|see discussions|researchgate|sign in|log in)\b`)

	pageMarkerRe   = regexp.MustCompile(`(?i)^\s*(page\s*\d+|p\.\s*\d+|\d+\s*(of|/)\s*\d+|\d+)\s*$`)
	fileNameLikeRe = regexp.MustCompile(`(?i)\.(pdf|docx?|txt|tex|indd|qxd)$`)
	letterRe       = regexp.MustCompile(`\pL`)

	// Placeholder titles produced by authoring tools.
	placeholderRe = regexp.MustCompile(`(?i)^(microsoft word\b|untitled\b|document\s*\d*$|layout\s*\d|powerpoint presentation)`)
)

// CheckTitleQuality returns an error wrapping ErrExtractionFailure when
// title looks like extraction debris rather than a paper title.
func CheckTitleQuality(title string) error {
	t := strings.TrimSpace(title)

	switch n := utf8.RuneCountInString(t); {
	case n == 0:
		return fmt.Errorf("%w: empty title", domain.ErrExtractionFailure)
	case n < minTitleLength:
		return fmt.Errorf("%w: title too short (%d chars)", domain.ErrExtractionFailure, n)
	case n > maxTitleLength:
		return fmt.Errorf("%w: title too long (%d chars)", domain.ErrExtractionFailure, n)
	}

	if pageMarkerRe.MatchString(t) {
		return fmt.Errorf("%w: page marker %q", domain.ErrExtractionFailure, t)
	}
	if !letterRe.MatchString(t) {
		return fmt.Errorf("%w: no letters in %q", domain.ErrExtractionFailure, t)
	}
	if fileNameLikeRe.MatchString(t) {
		return fmt.Errorf("%w: file name %q", domain.ErrExtractionFailure, t)
	}
	for _, check := range []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"URL fragment", urlFragmentRe},
		{"copyright boilerplate", copyrightRe},
		{"navigation text", navigationRe},
	} {
		if m := check.re.FindString(t); m != "" {
			return fmt.Errorf("%w: %s %q in title", domain.ErrExtractionFailure, check.kind, m)
		}
	}
	if placeholderRe.MatchString(t) {
		return fmt.Errorf("%w: placeholder title %q", domain.ErrExtractionFailure, t)
	}
	return nil
}

package normalisers

import (
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// FirstPagesChars approximates two printed pages for formats without pagination.
const FirstPagesChars = 6000

// FirstPages returns the leading part of text, cut at a line boundary where possible.
func FirstPages(text string) string {
	if len(text) <= FirstPagesChars {
		return text
	}
	cut := domain.Truncate(text, FirstPagesChars)
	if i := strings.LastIndexByte(cut, '\n'); i > FirstPagesChars/2 {
		cut = cut[:i]
	}
	return cut
}

package html

import (
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers"
)

// Ensure Reader implements the interface.
var _ driven.DocumentReader = (*Reader)(nil)

// Reader handles HTML documents.
type Reader struct{}

// New creates a new HTML reader.
func New() *Reader {
	return &Reader{}
}

// SupportedExtensions returns the extensions this reader handles.
func (r *Reader) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Read strips markup and collects citation meta tags.
func (r *Reader) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw := string(data)

	doc := domain.NewSourceDocument(path)
	doc.Properties = extractProperties(raw)
	doc.Text = stripHTML(raw)
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: %s has no text", domain.ErrExtractionFailure, doc.Filename)
	}
	doc.FirstPages = normalisers.FirstPages(doc.Text)
	return doc, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaTag           = regexp.MustCompile(`(?is)<meta\s+[^>]*>`)
	metaName          = regexp.MustCompile(`(?is)\b(?:name|property)\s*=\s*["']([^"']+)["']`)
	metaContent       = regexp.MustCompile(`(?is)\bcontent\s*=\s*["']([^"']*)["']`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<(nav|footer)[^>]*>.*?</(nav|footer)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// citationKeys maps Highwire / Dublin Core meta names to property keys.
var citationKeys = map[string]string{
	"citation_title":            "title",
	"dc.title":                  "title",
	"citation_author":           "author",
	"dc.creator":                "author",
	"citation_journal_title":    "journal",
	"citation_publication_date": "date",
	"citation_date":             "date",
	"dc.date":                   "date",
	"citation_volume":           "volume",
	"citation_firstpage":        "firstpage",
	"citation_lastpage":         "lastpage",
	"citation_doi":              "doi",
	"dc.identifier":             "identifier",
	"citation_pmid":             "pmid",
}

// extractProperties reads citation meta tags; repeated authors are joined with "; ".
// The <title> tag is used only when no citation title exists.
func extractProperties(content string) map[string]string {
	props := make(map[string]string)
	for _, tag := range metaTag.FindAllString(content, -1) {
		name := metaName.FindStringSubmatch(tag)
		value := metaContent.FindStringSubmatch(tag)
		if len(name) < 2 || len(value) < 2 {
			continue
		}
		key, ok := citationKeys[strings.ToLower(strings.TrimSpace(name[1]))]
		if !ok {
			continue
		}
		v := strings.TrimSpace(html.UnescapeString(value[1]))
		if v == "" {
			continue
		}
		if key == "author" && props[key] != "" {
			props[key] += "; " + v
			continue
		}
		if _, exists := props[key]; !exists {
			props[key] = v
		}
	}
	if _, ok := props["title"]; !ok {
		if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
			if t := strings.TrimSpace(html.UnescapeString(m[1])); t != "" {
				props["title"] = t
			}
		}
	}
	return props
}

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	// Remove non-content elements entirely
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = navTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

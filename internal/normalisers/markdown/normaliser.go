// Package markdown reads markdown documents, taking bibliographic properties
// from YAML front matter when present.
package markdown

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers"
)

// Ensure Reader implements the interface.
var _ driven.DocumentReader = (*Reader)(nil)

// Reader handles markdown documents.
type Reader struct{}

// New creates a new markdown reader.
func New() *Reader {
	return &Reader{}
}

// SupportedExtensions returns the extensions this reader handles.
func (r *Reader) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// Read loads the file, splits off front matter and strips markdown syntax.
func (r *Reader) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc := domain.NewSourceDocument(path)
	front, body := splitFrontMatter(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if front != "" {
		props, err := parseFrontMatter(front)
		if err != nil {
			logger.Debug("ignoring front matter in %s: %v", doc.Filename, err)
		} else {
			doc.Properties = props
		}
	}

	doc.Text = stripMarkdown(body)
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrExtractionFailure, doc.Filename)
	}
	doc.FirstPages = normalisers.FirstPages(doc.Text)
	return doc, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block.
func splitFrontMatter(content string) (front, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	front = rest[:end]
	body = rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return front, body
}

// parseFrontMatter flattens scalar and list values into lower-cased property keys.
// Lists are joined with "; " so author lists survive as a single property.
func parseFrontMatter(front string) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return nil, err
	}
	props := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "authors" {
			key = "author"
		}
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
			}
			props[key] = strings.Join(parts, "; ")
		default:
			if s := strings.TrimSpace(fmt.Sprint(val)); s != "" {
				props[key] = s
			}
		}
	}
	return props, nil
}

// Pre-compiled regular expressions for markdown stripping.
var (
	codeBlock     = regexp.MustCompile("(?s)```.*?```")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquote    = regexp.MustCompile(`(?m)^>\s*`)
	hr            = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*)`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting for plain text content.
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

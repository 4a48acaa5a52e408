// Package docx reads Word documents, exposing docProps/core.xml as embedded properties.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers"
)

// Ensure Reader implements the interface.
var _ driven.DocumentReader = (*Reader)(nil)

// Reader handles DOCX documents.
type Reader struct{}

// New creates a new DOCX reader.
func New() *Reader {
	return &Reader{}
}

// SupportedExtensions returns the extensions this reader handles.
func (r *Reader) SupportedExtensions() []string {
	return []string{".docx"}
}

// Read extracts paragraph text from word/document.xml and properties from
// docProps/core.xml.
func (r *Reader) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %w", domain.ErrExtractionFailure, err)
	}
	defer reader.Close()

	doc := domain.NewSourceDocument(path)

	body, err := readEntry(&reader.Reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}
	doc.Text = parseDocumentXML(body)
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: %s has no text", domain.ErrExtractionFailure, doc.Filename)
	}
	doc.FirstPages = normalisers.FirstPages(doc.Text)

	if core, err := readEntry(&reader.Reader, "docProps/core.xml"); err == nil {
		doc.Properties = parseCoreXML(core)
	}

	return doc, nil
}

// readEntry returns the contents of the named archive member.
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts text content from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// coreXML represents the fields of docProps/core.xml used as properties.
type coreXML struct {
	Title       string `xml:"title"`
	Creator     string `xml:"creator"`
	Subject     string `xml:"subject"`
	Keywords    string `xml:"keywords"`
	Description string `xml:"description"`
	Created     string `xml:"created"`
}

// parseCoreXML maps core properties onto the same keys pdfinfo produces.
func parseCoreXML(content []byte) map[string]string {
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return map[string]string{}
	}
	props := make(map[string]string)
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			props[key] = v
		}
	}
	set("title", core.Title)
	set("author", core.Creator)
	set("subject", core.Subject)
	set("keywords", core.Keywords)
	set("description", core.Description)
	set("creationdate", core.Created)
	return props
}

package domain

import (
	"crypto/sha1" //nolint:gosec // Used for stable identifiers, not security.
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// ExtractionMethod records which metadata tier produced a document's metadata.
type ExtractionMethod string

// Extraction methods, in escalation order.
const (
	// ExtractionEmbedded reads the document's embedded properties.
	ExtractionEmbedded ExtractionMethod = "embedded"

	// ExtractionParsed parses title/author/journal patterns from the first pages.
	ExtractionParsed ExtractionMethod = "parsed"

	// ExtractionGenerative asks a language model for structured metadata.
	ExtractionGenerative ExtractionMethod = "generative"

	// ExtractionFilename is the fallback when every tier failed.
	ExtractionFilename ExtractionMethod = "filename"
)

// IsValid returns true if the extraction method is recognised.
func (m ExtractionMethod) IsValid() bool {
	switch m {
	case ExtractionEmbedded, ExtractionParsed, ExtractionGenerative, ExtractionFilename:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m ExtractionMethod) String() string {
	return string(m)
}

// QualityFlag marks whether extracted metadata can be trusted.
type QualityFlag string

// Quality flags.
const (
	// QualityHigh means a tier produced metadata that passed the quality check.
	QualityHigh QualityFlag = "high"

	// QualityLow means metadata fell back to filename defaults; the document
	// needs manual review.
	QualityLow QualityFlag = "low"
)

// NeedsReview returns true if the document should be reviewed manually.
func (q QualityFlag) NeedsReview() bool {
	return q == QualityLow
}

// PaperMetadata is the bibliographic metadata of an ingested document.
// It is created at ingestion time and only ever replaced by re-extraction.
type PaperMetadata struct {
	// DocumentID is stable across re-ingestion of the same file.
	DocumentID string `json:"document_id"`

	// Filename is the base name of the source file.
	Filename string `json:"filename"`

	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	FirstAuthor string   `json:"first_author,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty"`

	Venue  string `json:"venue,omitempty"`
	Volume string `json:"volume,omitempty"`
	Pages  string `json:"pages,omitempty"`

	// ExternalID is the bibliographic identifier (PubMed ID).
	ExternalID string `json:"external_id,omitempty"`

	// PMCID is the PubMed Central identifier when open full text exists.
	PMCID string `json:"pmcid,omitempty"`

	DOI string `json:"doi,omitempty"`

	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	QualityFlag      QualityFlag      `json:"quality_flag"`
}

// Identity returns the identity used to detect already-indexed documents.
func (m PaperMetadata) Identity() DocumentIdentity {
	return DocumentIdentity{Filename: m.Filename, ExternalID: m.ExternalID}
}

// DedupKey returns the key used to collapse duplicate evidence.
// External identifier first, then normalised filename, then normalised title.
// Documents without an identifier never share a bucket unless their
// filenames (or titles) match.
func (m PaperMetadata) DedupKey() string {
	if m.ExternalID != "" {
		return "pmid:" + m.ExternalID
	}
	if m.DOI != "" {
		return "doi:" + strings.ToLower(m.DOI)
	}
	if name := NormaliseFilename(m.Filename); name != "" {
		return "file:" + name
	}
	if title := NormaliseText(m.Title); title != "" {
		return "title:" + title
	}
	return "doc:" + m.DocumentID
}

// Citation formats a short human-readable reference.
func (m PaperMetadata) Citation() string {
	var b strings.Builder
	if m.FirstAuthor != "" {
		b.WriteString(m.FirstAuthor)
		if len(m.Authors) > 1 {
			b.WriteString(" et al")
		}
		b.WriteString(". ")
	}
	b.WriteString(m.Title)
	if m.Venue != "" {
		b.WriteString(". ")
		b.WriteString(m.Venue)
	}
	if m.Year > 0 {
		b.WriteString(". ")
		b.WriteString(strconv.Itoa(m.Year))
	}
	return strings.TrimSpace(b.String())
}

// DocumentIdentity identifies a document for incremental-indexing checks.
type DocumentIdentity struct {
	Filename   string
	ExternalID string
}

// Chunk is a fixed-size token window of a document's text.
// Owned by the vector store that indexed it; immutable once created.
type Chunk struct {
	// ID is deterministic for a given document and position.
	ID string

	// DocumentID links to the source document.
	DocumentID string

	// Text is the content of this window.
	Text string

	// Position is the ordinal position within the document.
	Position int

	// TokenOffset is the index of the first token of the window.
	TokenOffset int

	// TokenLength is the number of tokens in the window.
	TokenLength int

	// Vector is the embedding of Text.
	Vector []float32
}

// SourceDocument is a document read from the ingestion directory,
// before metadata extraction.
type SourceDocument struct {
	// ID is the stable document ID derived from the filename.
	ID string

	// Path is the absolute path on disk.
	Path string

	// Filename is the base name.
	Filename string

	// Properties are the document's embedded properties (e.g. PDF Info dictionary).
	Properties map[string]string

	// FirstPages is the text of the first one or two pages.
	FirstPages string

	// Text is the full extracted text.
	Text string
}

// NewSourceDocument returns a SourceDocument for the file at path.
func NewSourceDocument(path string) *SourceDocument {
	name := filepath.Base(path)
	return &SourceDocument{
		ID:         DocumentIDForFilename(name),
		Path:       path,
		Filename:   name,
		Properties: map[string]string{},
	}
}

// DocumentIDForFilename derives a stable document ID from a filename.
func DocumentIDForFilename(filename string) string {
	sum := sha1.Sum([]byte(NormaliseFilename(filename))) //nolint:gosec // Stable ID only.
	return "doc-" + hex.EncodeToString(sum[:8])
}

// NormaliseFilename lower-cases a file's base name, drops the extension and
// collapses punctuation to single spaces.
func NormaliseFilename(name string) string {
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return NormaliseText(base)
}

// NormaliseText lower-cases text and collapses runs of non-alphanumerics to a single space.
func NormaliseText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

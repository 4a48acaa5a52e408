// Package chunker provides a token-window text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of overlapping tokens.
const DefaultChunkOverlap = 50

// chunkNamespace scopes chunk IDs so they cannot collide with other UUIDv5 users.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("asp-agent/chunk"))

// Processor splits document text into overlapping windows of
// whitespace-delimited tokens. It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document text into chunks.
// Input chunks are ignored; this processor creates new chunks from document text.
func (p *Processor) Process(ctx context.Context, doc *domain.SourceDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document has no ID", domain.ErrInvalidInput)
	}

	windows := Split(doc.Text, p.chunkSize, p.overlap)
	if len(windows) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, domain.Chunk{
			ID:          ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Text:        w.Text,
			Position:    i,
			TokenOffset: w.Offset,
			TokenLength: w.Length,
		})
	}

	return chunks, nil
}

// Window is one token window of a text.
type Window struct {
	Text   string
	Offset int
	Length int
}

// Split cuts text into windows of size tokens advancing by size-overlap.
// The last window may be shorter. Identical input always yields identical
// windows. An overlap at or above size is clamped to size/4.
func Split(text string, size, overlap int) []Window {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	step := size - overlap

	windows := make([]Window, 0, len(tokens)/step+1)
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		windows = append(windows, Window{
			Text:   strings.Join(tokens[start:end], " "),
			Offset: start,
			Length: end - start,
		})
		if end == len(tokens) {
			break
		}
	}
	return windows
}

// ChunkID returns the deterministic ID of the chunk at position in a document.
func ChunkID(documentID string, position int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", documentID, position))).String()
}

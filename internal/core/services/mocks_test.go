package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// mockEmbeddingService embeds text as a hashed bag of words, so texts
// sharing vocabulary have high cosine similarity. Fixed vectors take
// precedence for exact texts.
type mockEmbeddingService struct {
	mu       sync.Mutex
	dims     int
	model    string
	embedErr error
	calls    int
	fixed    map[string][]float32
}

func newMockEmbedder() *mockEmbeddingService {
	return &mockEmbeddingService{dims: 64, model: "mock-embed"}
}

var mockStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "in": true,
	"for": true, "to": true, "with": true, "is": true, "on": true, "i": true, "would": true,
}

func (m *mockEmbeddingService) vector(text string) []float32 {
	if v, ok := m.fixed[text]; ok {
		return v
	}
	v := make([]float32, m.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if mockStopwords[w] {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dims)]++
	}
	return v
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int            { return m.dims }
func (m *mockEmbeddingService) ModelName() string          { return m.model }
func (m *mockEmbeddingService) Ping(context.Context) error { return m.embedErr }
func (m *mockEmbeddingService) Close() error               { return nil }

// mockLLMService replays scripted responses; once the script is exhausted
// it repeats response.
type mockLLMService struct {
	mu       sync.Mutex
	name     string
	response string
	script   []mockLLMReply
	prompts  []string
	block    bool
}

type mockLLMReply struct {
	text string
	err  error
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	var reply *mockLLMReply
	if len(m.script) > 0 {
		reply = &m.script[0]
		m.script = m.script[1:]
	}
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if reply != nil {
		return reply.text, reply.err
	}
	return m.response, nil
}

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockLLMService) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *mockLLMService) ModelName() string {
	if m.name == "" {
		return "mock-llm"
	}
	return m.name
}

func (m *mockLLMService) Ping(context.Context) error { return nil }
func (m *mockLLMService) Close() error               { return nil }

// mockPromptStore serves fixed templates.
type mockPromptStore struct {
	prompts map[string]string
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptFeedbackPersona:    "PERSONA: antimicrobial stewardship educator.",
		driven.PromptAntiFabrication:    "ANTI-FABRICATION: do not invent citations.",
		driven.PromptNoEvidence:         "NO-EVIDENCE: say that no supporting literature was retrieved.",
		driven.PromptFeedbackFormat:     "FORMAT: feedback for a {{difficulty}} learner.",
		driven.PromptMetadataExtraction: "Extract metadata from {{filename}}:\n{{text}}",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockBibliographicSearch returns fixed results.
type mockBibliographicSearch struct {
	mu      sync.Mutex
	results []domain.RetrievalResult
	err     error
	queries []string
}

func (m *mockBibliographicSearch) Search(_ context.Context, query string, max int) ([]domain.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	out := m.results
	if len(out) > max {
		out = out[:max]
	}
	return append([]domain.RetrievalResult(nil), out...), nil
}

func (m *mockBibliographicSearch) Name() string { return "mock-pubmed" }

func (m *mockBibliographicSearch) searched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// mockFullTextFetcher returns text per PMCID.
type mockFullTextFetcher struct {
	texts   map[string]string
	fetched []string
}

func (m *mockFullTextFetcher) FetchFullText(_ context.Context, pmcid string) (string, error) {
	m.fetched = append(m.fetched, pmcid)
	text, ok := m.texts[pmcid]
	if !ok {
		return "", errors.New("no open-access full text")
	}
	return text, nil
}

// mockReaderRegistry serves documents from memory keyed by path.
type mockReaderRegistry struct {
	docs map[string]*domain.SourceDocument
	errs map[string]error
}

func newMockRegistry() *mockReaderRegistry {
	return &mockReaderRegistry{
		docs: make(map[string]*domain.SourceDocument),
		errs: make(map[string]error),
	}
}

func (m *mockReaderRegistry) add(path, text string, props map[string]string) {
	doc := domain.NewSourceDocument(path)
	doc.Text = text
	doc.FirstPages = text
	for k, v := range props {
		doc.Properties[k] = v
	}
	m.docs[path] = doc
}

func (m *mockReaderRegistry) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	if err := m.errs[path]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *mockReaderRegistry) Register(driven.DocumentReader) {}

func (m *mockReaderRegistry) Supports(path string) bool {
	_, ok := m.docs[path]
	return ok
}

// mockDocumentSource lists paths and records processed moves.
type mockDocumentSource struct {
	mu        sync.Mutex
	paths     []string
	processed []string
	watch     chan string
}

func (m *mockDocumentSource) Root() string { return "/papers" }

func (m *mockDocumentSource) Scan(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.paths {
		if !containsString(m.processed, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockDocumentSource) ScanProcessed(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...), nil
}

func (m *mockDocumentSource) MarkProcessed(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, path)
	return "/papers/processed/" + path, nil
}

func (m *mockDocumentSource) Watch(context.Context) (<-chan string, <-chan error, error) {
	if m.watch == nil {
		return nil, nil, errors.New("watch not supported")
	}
	return m.watch, make(chan error), nil
}

func (m *mockDocumentSource) Close() error { return nil }

func (m *mockDocumentSource) processedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

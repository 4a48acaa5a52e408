package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

type stubReader struct {
	exts []string
	name string
}

func (s *stubReader) SupportedExtensions() []string { return s.exts }

func (s *stubReader) Read(_ context.Context, path string) (*domain.SourceDocument, error) {
	doc := domain.NewSourceDocument(path)
	doc.Text = s.name
	return doc, nil
}

func TestRegistry_Read(t *testing.T) {
	reg := NewRegistry(&stubReader{exts: []string{".pdf"}, name: "pdf"}, &stubReader{exts: []string{"txt"}, name: "txt"})

	doc, err := reg.Read(context.Background(), "/papers/Study.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf", doc.Text)
	assert.Equal(t, "Study.PDF", doc.Filename)

	doc, err = reg.Read(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "txt", doc.Text)
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	reg := NewRegistry(&stubReader{exts: []string{".pdf"}})

	_, err := reg.Read(context.Background(), "image.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = reg.Read(context.Background(), "README")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_Supports(t *testing.T) {
	reg := NewRegistry(&stubReader{exts: []string{".pdf", ".txt"}})

	assert.True(t, reg.Supports("a.pdf"))
	assert.True(t, reg.Supports("A.TXT"))
	assert.False(t, reg.Supports("a.docx"))
	assert.False(t, reg.Supports("pdf"))
	assert.Equal(t, []string{".pdf", ".txt"}, reg.Extensions())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry(&stubReader{exts: []string{".pdf"}, name: "first"})
	reg.Register(&stubReader{exts: []string{".pdf"}, name: "second"})

	doc, err := reg.Read(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Text)
}

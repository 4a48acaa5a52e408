package html

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

const article = `<!DOCTYPE html>
<html><head>
<title>Journal site | Article</title>
<meta name="citation_title" content="Procalcitonin-guided antibiotic discontinuation">
<meta name="citation_author" content="Schuetz P">
<meta name="citation_author" content="Wirz Y">
<meta name="citation_journal_title" content="Lancet Infect Dis">
<meta name="citation_publication_date" content="2018/01/01">
<meta name="citation_doi" content="10.1016/S1473-3099(17)30592-3">
<meta property="og:title" content="ignored">
</head>
<body>
<nav>Skip to content | Log in</nav>
<h1>Procalcitonin-guided antibiotic discontinuation</h1>
<p>Background &amp; methods.</p>
<script>var x = 1;</script>
<footer>All rights reserved</footer>
</body></html>`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRead_CitationMeta(t *testing.T) {
	doc, err := New().Read(context.Background(), write(t, "pct.html", article))
	require.NoError(t, err)

	assert.Equal(t, "Procalcitonin-guided antibiotic discontinuation", doc.Properties["title"])
	assert.Equal(t, "Schuetz P; Wirz Y", doc.Properties["author"])
	assert.Equal(t, "Lancet Infect Dis", doc.Properties["journal"])
	assert.Equal(t, "2018/01/01", doc.Properties["date"])
	assert.Equal(t, "10.1016/S1473-3099(17)30592-3", doc.Properties["doi"])
	assert.Equal(t, "Procalcitonin-guided antibiotic discontinuation\nBackground & methods.", doc.Text)
}

func TestExtractProperties_TitleTagFallback(t *testing.T) {
	props := extractProperties("<html><head><title> Sepsis &amp; shock </title></head></html>")
	assert.Equal(t, "Sepsis & shock", props["title"])
}

func TestRead_NoText(t *testing.T) {
	_, err := New().Read(context.Background(), write(t, "empty.html", "<html><head><title>x</title></head><body></body></html>"))
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
}

func TestRead_EmptyPath(t *testing.T) {
	_, err := New().Read(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

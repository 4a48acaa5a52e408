package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func pdfOnly(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		c := New("/tmp/papers")

		require.NotNil(t, c)
		assert.Equal(t, "/tmp/papers", c.Root())
		assert.Equal(t, filepath.Join("/tmp/papers", domain.DefaultProcessedDirName), c.ProcessedPath())
		assert.Equal(t, DefaultDebounce, c.debounce)
	})

	t.Run("applies options", func(t *testing.T) {
		c := New("/tmp/papers", WithProcessedDir("done"), WithDebounce(0), WithFilter(pdfOnly))

		assert.Equal(t, filepath.Join("/tmp/papers", "done"), c.ProcessedPath())
		assert.Zero(t, c.debounce)
		assert.True(t, c.supports("a.pdf"))
		assert.False(t, c.supports("a.txt"))
	})

	t.Run("implements DocumentSource interface", func(t *testing.T) {
		var _ driven.DocumentSource = New("/tmp")
	})
}

func TestConnector_Scan(t *testing.T) {
	t.Run("returns supported files sorted", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "b.pdf"), "b")
		writeFile(t, filepath.Join(dir, "a.pdf"), "a")
		writeFile(t, filepath.Join(dir, "nested", "c.pdf"), "c")
		writeFile(t, filepath.Join(dir, "notes.txt"), "skip")

		paths, err := New(dir, WithFilter(pdfOnly)).Scan(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.pdf"),
			filepath.Join(dir, "b.pdf"),
			filepath.Join(dir, "nested", "c.pdf"),
		}, paths)
	})

	t.Run("skips hidden and processed files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "keep.pdf"), "k")
		writeFile(t, filepath.Join(dir, ".hidden.pdf"), "h")
		writeFile(t, filepath.Join(dir, ".cache", "x.pdf"), "h")
		writeFile(t, filepath.Join(dir, domain.DefaultProcessedDirName, "old.pdf"), "o")

		paths, err := New(dir).Scan(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "keep.pdf")}, paths)
	})

	t.Run("returns error for missing root", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "missing")).Scan(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns error when root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.pdf")
		writeFile(t, path, "x")

		_, err := New(path).Scan(context.Background())

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(t.TempDir()).Scan(ctx)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConnector_ScanProcessed(t *testing.T) {
	t.Run("lists moved files", func(t *testing.T) {
		dir := t.TempDir()
		c := New(dir, WithFilter(pdfOnly))
		writeFile(t, filepath.Join(c.ProcessedPath(), "b.pdf"), "b")
		writeFile(t, filepath.Join(c.ProcessedPath(), "sub", "a.pdf"), "a")
		writeFile(t, filepath.Join(c.ProcessedPath(), "notes.txt"), "skip")
		writeFile(t, filepath.Join(dir, "new.pdf"), "new")

		paths, err := c.ScanProcessed(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(c.ProcessedPath(), "b.pdf"),
			filepath.Join(c.ProcessedPath(), "sub", "a.pdf"),
		}, paths)
	})

	t.Run("missing processed directory", func(t *testing.T) {
		paths, err := New(t.TempDir()).ScanProcessed(context.Background())

		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestConnector_MarkProcessed(t *testing.T) {
	t.Run("moves file into processed directory", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "nested", "paper.pdf")
		writeFile(t, src, "content")
		c := New(dir)

		dest, err := c.MarkProcessed(context.Background(), src)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(c.ProcessedPath(), "nested", "paper.pdf"), dest)
		assert.NoFileExists(t, src)
		assert.FileExists(t, dest)
	})

	t.Run("suffixes on name collision", func(t *testing.T) {
		dir := t.TempDir()
		c := New(dir)
		writeFile(t, filepath.Join(c.ProcessedPath(), "paper.pdf"), "old")
		src := filepath.Join(dir, "paper.pdf")
		writeFile(t, src, "new")

		dest, err := c.MarkProcessed(context.Background(), src)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(c.ProcessedPath(), "paper-1.pdf"), dest)
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		dir := t.TempDir()

		_, err := New(dir).MarkProcessed(context.Background(), filepath.Join(dir, "gone.pdf"))

		assert.Error(t, err)
	})
}

func TestConnector_Watch(t *testing.T) {
	t.Run("emits created files", func(t *testing.T) {
		dir := t.TempDir()
		c := New(dir, WithDebounce(10*time.Millisecond), WithFilter(pdfOnly))
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		paths, _, err := c.Watch(ctx)
		require.NoError(t, err)

		target := filepath.Join(dir, "new.pdf")
		writeFile(t, filepath.Join(dir, "ignored.txt"), "x")
		writeFile(t, target, "x")

		select {
		case got := <-paths:
			assert.Equal(t, target, got)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch event")
		}
	})

	t.Run("closes channels when context is cancelled", func(t *testing.T) {
		c := New(t.TempDir())
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		paths, _, err := c.Watch(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-paths:
			assert.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("channel not closed")
		}
	})

	t.Run("returns error for missing root", func(t *testing.T) {
		c := New(filepath.Join(t.TempDir(), "missing"))

		_, _, err := c.Watch(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("returns error after close", func(t *testing.T) {
		c := New(t.TempDir())
		require.NoError(t, c.Close())

		_, _, err := c.Watch(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})
}

func TestConnector_Close(t *testing.T) {
	c := New(t.TempDir())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestConnector_handleFsEvent(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "a.pdf")
	writeFile(t, pdf, "x")
	txt := filepath.Join(dir, "a.txt")
	writeFile(t, txt, "x")
	hidden := filepath.Join(dir, ".a.pdf")
	writeFile(t, hidden, "x")
	c := New(dir, WithFilter(pdfOnly))

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create supported file", fsnotify.Event{Name: pdf, Op: fsnotify.Create}, true},
		{"write supported file", fsnotify.Event{Name: pdf, Op: fsnotify.Write}, true},
		{"remove is ignored", fsnotify.Event{Name: pdf, Op: fsnotify.Remove}, false},
		{"chmod is ignored", fsnotify.Event{Name: pdf, Op: fsnotify.Chmod}, false},
		{"unsupported extension", fsnotify.Event{Name: txt, Op: fsnotify.Create}, false},
		{"hidden file", fsnotify.Event{Name: hidden, Op: fsnotify.Create}, false},
		{"missing file", fsnotify.Event{Name: filepath.Join(dir, "gone.pdf"), Op: fsnotify.Create}, false},
		{"directory", fsnotify.Event{Name: dir, Op: fsnotify.Create}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.handleFsEvent(tt.event)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"paper.pdf", false},
		{".paper.pdf", true},
		{"/data/.git/config", true},
		{"/data/papers/a.pdf", false},
		{"./a.pdf", false},
		{"../a.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isHidden(tt.path))
		})
	}
}

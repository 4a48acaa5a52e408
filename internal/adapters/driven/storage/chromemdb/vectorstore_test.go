package chromemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

func entry(id, docID, filename, pmid string, vec ...float32) driven.VectorEntry {
	meta := map[string]string{
		driven.MetaDocumentID:  docID,
		driven.MetaFilenameKey: domain.NormaliseFilename(filename),
	}
	if pmid != "" {
		meta[driven.MetaExternalID] = pmid
	}
	return driven.VectorEntry{ID: id, Vector: vec, Text: "text of " + id, Metadata: meta}
}

func openCollection(t *testing.T, path string, dims int) *VectorStore {
	t.Helper()
	db, err := Open(path)
	require.NoError(t, err)
	store, err := db.Collection(context.Background(), driven.CollectionLiterature, dims)
	require.NoError(t, err)
	return store
}

func TestVectorStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)

	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{
		entry("a", "doc-a", "a.pdf", "", 1, 0),
		entry("b", "doc-b", "b.pdf", "", 0, 1),
		entry("c", "doc-c", "c.pdf", "", 1, 1),
	}))
	assert.Equal(t, 3, store.Count())
	assert.Equal(t, driven.CollectionLiterature, store.Name())
	assert.Equal(t, 2, store.Dimensions())

	matches, err := store.Query(ctx, []float32{2, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
	assert.Equal(t, "c", matches[1].ID)
	assert.InDelta(t, 0.7071, matches[1].Similarity, 1e-3)
	assert.Equal(t, "text of a", matches[0].Text)
	assert.Equal(t, "doc-a", matches[0].Metadata[driven.MetaDocumentID])
}

func TestVectorStore_QueryClampsResultCount(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)

	matches, err := store.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 1, 0)}))
	matches, err = store.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = store.Query(ctx, []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorStore_QueryFilter(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{
		entry("a1", "doc-a", "a.pdf", "", 1, 0),
		entry("a2", "doc-a", "a.pdf", "", 0.9, 0.1),
		entry("b1", "doc-b", "b.pdf", "", 1, 0),
	}))

	matches, err := store.Query(ctx, []float32{1, 0}, 3, map[string]string{driven.MetaDocumentID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "doc-a", m.Metadata[driven.MetaDocumentID])
	}
}

func TestVectorStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)

	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 1, 0)}))
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 0, 1)}))

	assert.Equal(t, 1, store.Count())
	matches, err := store.Query(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
}

func TestVectorStore_RejectsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)

	orphan := entry("a", "doc-a", "a.pdf", "", 1, 0)
	orphan.Text = ""
	assert.ErrorIs(t, store.Upsert(ctx, []driven.VectorEntry{orphan}), domain.ErrOrphanVector)

	assert.ErrorIs(t, store.Upsert(ctx, []driven.VectorEntry{entry("b", "doc-b", "b.pdf", "", 1, 0, 0)}),
		domain.ErrDimensionMismatch)
	assert.Zero(t, store.Count())
}

func TestVectorStore_HasDocument(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{
		entry("a", "doc-a", "Smith 2020.pdf", "12345", 1, 0),
	}))

	tests := []struct {
		name     string
		identity domain.DocumentIdentity
		want     bool
	}{
		{name: "same filename", identity: domain.DocumentIdentity{Filename: "smith 2020.PDF"}, want: true},
		{name: "same pmid", identity: domain.DocumentIdentity{Filename: "other.pdf", ExternalID: "12345"}, want: true},
		{name: "unknown", identity: domain.DocumentIdentity{Filename: "other.pdf", ExternalID: "999"}, want: false},
		{name: "empty", identity: domain.DocumentIdentity{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.HasDocument(ctx, tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVectorStore_DeleteDocumentAndReset(t *testing.T) {
	ctx := context.Background()
	store := openCollection(t, "", 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{
		entry("a1", "doc-a", "a.pdf", "", 1, 0),
		entry("a2", "doc-a", "a.pdf", "", 0, 1),
		entry("b1", "doc-b", "b.pdf", "", 1, 1),
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-a"))
	assert.Equal(t, 1, store.Count())
	assert.ErrorIs(t, store.DeleteDocument(ctx, ""), domain.ErrInvalidInput)

	require.NoError(t, store.Reset(ctx))
	assert.Zero(t, store.Count())

	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("c", "doc-c", "c.pdf", "", 1, 0)}))
	assert.Equal(t, 1, store.Count())
}

func TestVectorStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := openCollection(t, dir, 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 1, 0)}))

	reopened := openCollection(t, dir, 2)
	assert.Equal(t, 1, reopened.Count())
	found, err := reopened.HasDocument(ctx, domain.DocumentIdentity{Filename: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDB_CollectionDimensionChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := openCollection(t, dir, 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 1, 0)}))

	db, err := Open(dir)
	require.NoError(t, err)
	_, err = db.Collection(ctx, driven.CollectionLiterature, 3)
	assert.ErrorIs(t, err, domain.ErrReindexRequired)

	_, err = db.Collection(ctx, driven.CollectionExpertExemplars, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDB_DropCollectionAllowsNewDimension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := openCollection(t, dir, 2)
	require.NoError(t, store.Upsert(ctx, []driven.VectorEntry{entry("a", "doc-a", "a.pdf", "", 1, 0)}))

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.DropCollection(driven.CollectionLiterature))

	rebuilt, err := db.Collection(ctx, driven.CollectionLiterature, 3)
	require.NoError(t, err)
	assert.Zero(t, rebuilt.Count())
}

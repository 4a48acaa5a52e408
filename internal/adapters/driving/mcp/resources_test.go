package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid document URI",
			uri:      "asp://documents/doc-456",
			expected: "doc-456",
		},
		{
			name:     "external document URI",
			uri:      "asp://documents/pmid:123",
			expected: "pmid:123",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-456",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractDocumentID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func newResourceServer(t *testing.T, ingestion *mockIngestionService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ingestion: ingestion})
	require.NoError(t, err)
	return server
}

func TestServer_handleStatsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ledger summary", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{stats: driving.IngestionStats{
			Ledger: domain.LedgerStats{
				Documents: 4, Chunks: 40, NeedsReview: 1, Failures: 2,
				ByMethod: map[domain.ExtractionMethod]int{domain.ExtractionEmbedded: 3, domain.ExtractionFilename: 1},
			},
			Collections: map[string]int{"literature": 40},
			Model:       "nomic-embed-text",
		}})

		result, err := server.handleStatsResource(ctx, makeReadResourceRequest("asp://stats"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &got))
		assert.EqualValues(t, 4, got["documents"])
		assert.EqualValues(t, 2, got["failures"])
		assert.Equal(t, "nomic-embed-text", got["embedding_model"])
		assert.Equal(t, map[string]any{"embedded": 3.0, "filename": 1.0}, got["by_extraction_method"])
	})

	t.Run("returns error on failure", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{err: errors.New("db locked")})

		_, err := server.handleStatsResource(ctx, makeReadResourceRequest("asp://stats"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading stats")
	})
}

func TestServer_handleReviewResource(t *testing.T) {
	ctx := context.Background()
	server := newResourceServer(t, &mockIngestionService{records: []domain.IngestionRecord{
		{
			Metadata: domain.PaperMetadata{DocumentID: "d1", Filename: "scan.pdf", Title: "Scan"},
			Path:     "/papers/processed/scan.pdf",
		},
	}})

	result, err := server.handleReviewResource(ctx, makeReadResourceRequest("asp://review"))
	require.NoError(t, err)

	var got []map[string]string
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0]["id"])
	assert.Equal(t, "scan.pdf", got[0]["filename"])
	assert.Equal(t, "/papers/processed/scan.pdf", got[0]["path"])
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the ledger record", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{record: &domain.IngestionRecord{
			Metadata:       domain.PaperMetadata{DocumentID: "d1", Title: "Vancomycin guideline", Year: 2020},
			Path:           "/papers/processed/rybak.pdf",
			ChunkCount:     12,
			EmbeddingModel: "nomic-embed-text",
			IngestedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}})

		result, err := server.handleDocumentResource(ctx, makeReadResourceRequest("asp://documents/d1"))
		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, `"title": "Vancomycin guideline"`)
		assert.Contains(t, result.Contents[0].Text, `"chunks": 12`)
		assert.Contains(t, result.Contents[0].Text, `"ingested_at": "2026-03-01T12:00:00Z"`)
	})

	t.Run("unknown document is not found", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{})

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("asp://documents/missing"))
		require.Error(t, err)
	})

	t.Run("invalid URI is not found", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{})

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("file://documents/d1"))
		require.Error(t, err)
	})

	t.Run("ledger error is wrapped", func(t *testing.T) {
		server := newResourceServer(t, &mockIngestionService{err: errors.New("db locked")})

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("asp://documents/d1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting document")
	})
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for ledger resources.
	uriScheme = "asp://"
)

// registerResources registers the ledger resources. They need the
// ingestion service and are skipped without it.
func (s *Server) registerResources() {
	if s.ports.Ingestion == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Ingestion ledger summary and collection sizes",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "review",
		Name:        "needs-review",
		Description: "Documents whose metadata fell back to filename defaults",
		MIMEType:    "application/json",
	}, s.handleReviewResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document",
		Description: "Ledger record and metadata of an indexed document",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)
}

// handleStatsResource returns the ledger summary.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Ingestion.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	type statsInfo struct {
		Documents   int            `json:"documents"`
		Chunks      int            `json:"chunks"`
		NeedsReview int            `json:"needs_review"`
		Failures    int            `json:"failures"`
		ByMethod    map[string]int `json:"by_extraction_method"`
		Collections map[string]int `json:"collections"`
		Model       string         `json:"embedding_model,omitempty"`
	}

	info := statsInfo{
		Documents:   stats.Ledger.Documents,
		Chunks:      stats.Ledger.Chunks,
		NeedsReview: stats.Ledger.NeedsReview,
		Failures:    stats.Ledger.Failures,
		ByMethod:    make(map[string]int, len(stats.Ledger.ByMethod)),
		Collections: stats.Collections,
		Model:       stats.Model,
	}
	for method, n := range stats.Ledger.ByMethod {
		info.ByMethod[method.String()] = n
	}
	return jsonResource(req.Params.URI, info)
}

// handleReviewResource lists documents flagged for manual review.
func (s *Server) handleReviewResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records, err := s.ports.Ingestion.NeedsReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents for review: %w", err)
	}

	type reviewInfo struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Title    string `json:"title"`
		Path     string `json:"path"`
	}

	infos := make([]reviewInfo, len(records))
	for i := range records {
		infos[i] = reviewInfo{
			ID:       records[i].Metadata.DocumentID,
			Filename: records[i].Metadata.Filename,
			Title:    records[i].Metadata.Title,
			Path:     records[i].Path,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleDocumentResource returns the ledger record of one document.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract documentId from URI: asp://documents/{documentId}
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	record, err := s.ports.Ingestion.Document(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	type documentInfo struct {
		Metadata       domain.PaperMetadata `json:"metadata"`
		Path           string               `json:"path"`
		Chunks         int                  `json:"chunks"`
		EmbeddingModel string               `json:"embedding_model"`
		IngestedAt     string               `json:"ingested_at"`
	}
	return jsonResource(req.Params.URI, documentInfo{
		Metadata:       record.Metadata,
		Path:           record.Path,
		Chunks:         record.ChunkCount,
		EmbeddingModel: record.EmbeddingModel,
		IngestedAt:     record.IngestedAt.Format(time.RFC3339),
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like asp://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}

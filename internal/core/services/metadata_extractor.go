package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// MetadataExtractor produces bibliographic metadata by trying an ordered list
// of strategies and keeping the first candidate whose title passes the
// quality check. When every tier fails the metadata falls back to the
// filename and is flagged for review; extraction itself never fails.
type MetadataExtractor struct {
	strategies []MetadataStrategy
}

// NewMetadataExtractor creates an extractor with the embedded, parsed and
// generative tiers. llm and prompts may be nil, which disables the generative tier.
func NewMetadataExtractor(llm driven.LLMService, prompts driven.PromptStore) *MetadataExtractor {
	strategies := []MetadataStrategy{EmbeddedStrategy{}, ParsedStrategy{}}
	if llm != nil && prompts != nil {
		strategies = append(strategies, GenerativeStrategy{LLM: llm, Prompts: prompts})
	}
	return NewMetadataExtractorWithStrategies(strategies...)
}

// NewMetadataExtractorWithStrategies creates an extractor with a custom tier order.
func NewMetadataExtractorWithStrategies(strategies ...MetadataStrategy) *MetadataExtractor {
	return &MetadataExtractor{strategies: strategies}
}

// Extract returns metadata for doc.
func (e *MetadataExtractor) Extract(ctx context.Context, doc *domain.SourceDocument) domain.PaperMetadata {
	log := logger.With("file", doc.Filename)

	var meta *domain.PaperMetadata
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			break
		}

		candidate, err := s.Extract(ctx, doc)
		if err != nil {
			if isExtractionFailure(err) {
				log.Debug("metadata tier produced nothing", "tier", s.Method(), "reason", err)
			} else {
				log.Warn("metadata tier failed", "tier", s.Method(), "error", err)
			}
			continue
		}
		if err := CheckTitleQuality(candidate.Title); err != nil {
			log.Debug("metadata tier rejected", "tier", s.Method(), "reason", err)
			continue
		}

		candidate.ExtractionMethod = s.Method()
		candidate.QualityFlag = domain.QualityHigh
		meta = candidate
		break
	}

	if meta == nil {
		log.Warn("all metadata tiers failed, using filename")
		meta = &domain.PaperMetadata{
			Title:            TitleFromFilename(doc.Filename),
			ExtractionMethod: domain.ExtractionFilename,
			QualityFlag:      domain.QualityLow,
		}
	}

	meta.DocumentID = doc.ID
	meta.Filename = doc.Filename
	enrichFromText(meta, doc.FirstPages, doc.Properties["subject"], doc.Properties["keywords"])
	if meta.FirstAuthor == "" && len(meta.Authors) > 0 {
		meta.FirstAuthor = meta.Authors[0]
	}

	log.Info("extracted metadata", "method", meta.ExtractionMethod, "title", meta.Title)
	return *meta
}

// TitleFromFilename derives a readable title from a file name.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	return cleanLine(base)
}

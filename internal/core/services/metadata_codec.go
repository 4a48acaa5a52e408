package services

import (
	"strconv"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Literature entry metadata keys. Stores only hold flat string maps.
const (
	metaFilename         = "filename"
	metaTitle            = "title"
	metaAuthors          = "authors"
	metaYear             = "year"
	metaVenue            = "venue"
	metaVolume           = "volume"
	metaPages            = "pages"
	metaPMCID            = "pmcid"
	metaDOI              = "doi"
	metaExtractionMethod = "extraction_method"
	metaQualityFlag      = "quality_flag"
	metaTokenOffset      = "token_offset"
	metaTokenLength      = "token_length"
	metaPosition         = "position"
)

const authorSeparator = "; "

// encodeChunkMetadata flattens a document's metadata for one of its chunks.
func encodeChunkMetadata(meta *domain.PaperMetadata, chunk *domain.Chunk) map[string]string {
	fields := map[string]string{
		driven.MetaDocumentID:  meta.DocumentID,
		driven.MetaFilenameKey: domain.NormaliseFilename(meta.Filename),
		metaFilename:           meta.Filename,
		metaTitle:              meta.Title,
		metaExtractionMethod:   meta.ExtractionMethod.String(),
		metaQualityFlag:        string(meta.QualityFlag),
		metaTokenOffset:        strconv.Itoa(chunk.TokenOffset),
		metaTokenLength:        strconv.Itoa(chunk.TokenLength),
		metaPosition:           strconv.Itoa(chunk.Position),
	}
	setIf(fields, metaAuthors, strings.Join(meta.Authors, authorSeparator))
	if meta.Year > 0 {
		fields[metaYear] = strconv.Itoa(meta.Year)
	}
	setIf(fields, metaVenue, meta.Venue)
	setIf(fields, metaVolume, meta.Volume)
	setIf(fields, metaPages, meta.Pages)
	setIf(fields, driven.MetaExternalID, meta.ExternalID)
	setIf(fields, metaPMCID, meta.PMCID)
	setIf(fields, metaDOI, meta.DOI)
	return fields
}

// decodePaperMetadata rebuilds document metadata from a stored entry.
func decodePaperMetadata(fields map[string]string) domain.PaperMetadata {
	meta := domain.PaperMetadata{
		DocumentID:       fields[driven.MetaDocumentID],
		Filename:         fields[metaFilename],
		Title:            fields[metaTitle],
		Venue:            fields[metaVenue],
		Volume:           fields[metaVolume],
		Pages:            fields[metaPages],
		ExternalID:       fields[driven.MetaExternalID],
		PMCID:            fields[metaPMCID],
		DOI:              fields[metaDOI],
		ExtractionMethod: domain.ExtractionMethod(fields[metaExtractionMethod]),
		QualityFlag:      domain.QualityFlag(fields[metaQualityFlag]),
	}
	if authors := fields[metaAuthors]; authors != "" {
		meta.Authors = strings.Split(authors, authorSeparator)
		meta.FirstAuthor = meta.Authors[0]
	}
	if year, err := strconv.Atoi(fields[metaYear]); err == nil {
		meta.Year = year
	}
	return meta
}

func setIf(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

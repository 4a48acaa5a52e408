package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

func ingestReport() domain.IngestReport {
	return domain.IngestReport{Results: []domain.IngestResult{
		{
			Path:     "/papers/rybak.pdf",
			Status:   domain.IngestIndexed,
			Chunks:   12,
			Metadata: &domain.PaperMetadata{Title: "Vancomycin monitoring", QualityFlag: domain.QualityHigh},
		},
		{
			Path:     "/papers/scan.pdf",
			Status:   domain.IngestIndexed,
			Chunks:   3,
			Metadata: &domain.PaperMetadata{Title: "scan", QualityFlag: domain.QualityLow},
		},
		{Path: "/papers/dup.pdf", Status: domain.IngestSkipped},
		{Path: "/papers/broken.pdf", Status: domain.IngestFailed, Err: errors.New("no text layer")},
	}}
}

func TestIngestCmd_DefaultDirectory(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.report = ingestReport()

	out, err := execute(t, "ingest")
	require.NoError(t, err)

	assert.Equal(t, "/papers", ts.ingestion.sourceRoot)
	assert.False(t, ts.ingestion.reindexed)
	assert.Contains(t, out, "+ Vancomycin monitoring (12 chunks)")
	assert.Contains(t, out, "+ scan (3 chunks) [needs review]")
	assert.Contains(t, out, "= /papers/dup.pdf (already indexed)")
	assert.Contains(t, out, "! /papers/broken.pdf: no text layer")
	assert.Contains(t, out, "Indexed: 2  Skipped: 1  Failed: 1")
	require.Len(t, ts.sources, 1)
	assert.True(t, ts.sources[0].closed)
}

func TestIngestCmd_Reindex(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ingest", "--reindex", "/library")
	require.NoError(t, err)
	assert.True(t, ts.ingestion.reindexed)
	assert.Equal(t, "/library", ts.ingestion.sourceRoot)
}

func TestIngestCmd_Watch(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.report = ingestReport()

	out, err := execute(t, "ingest", "--watch")
	require.NoError(t, err)
	assert.True(t, ts.ingestion.watched)
	assert.Contains(t, out, "Watching /papers")
	assert.Contains(t, out, "+ Vancomycin monitoring")
}

func TestIngestCmd_NoDirectory(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defaultSourceDir = ""

	_, err := execute(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source directory")
}

func TestIngestCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.err = domain.ErrReindexRequired

	_, err := execute(t, "ingest")
	assert.ErrorIs(t, err, domain.ErrReindexRequired)
}

func TestExpertImportCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.source.data = &domain.ExpertImport{
		Corrections: []domain.ExpertCorrection{{}, {}},
		Exemplars:   []domain.ExpertExemplar{{}},
	}

	out, err := execute(t, "expert", "import", "experts.yaml")
	require.NoError(t, err)
	assert.Same(t, ts.source.data, ts.expert.imported)
	assert.Contains(t, out, "Corrections added: 2")
	assert.Contains(t, out, "Exemplars added:   1")
}

func TestExpertImportCmd_LoadError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.source.err = domain.ErrUnsupportedType

	_, err := execute(t, "expert", "import", "experts.csv")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Nil(t, ts.expert.imported)
}

func TestExpertImportCmd_RequiresFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "expert", "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRetrieveCmd_Table(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.retrieval.evidence.Failures = []domain.TierFailure{{Tier: domain.TierExternalSearch, Error: "timeout"}}

	out, err := execute(t, "retrieve", "--limit", "3", "--external", "vancomycin AUC")
	require.NoError(t, err)

	assert.Equal(t, driving.RetrievalQuery{Text: "vancomycin AUC", MaxResults: 3, ForceExternal: true}, ts.retrieval.query)
	assert.Contains(t, out, "Outcome: evidence_found")
	assert.Contains(t, out, "Skipped external_search: timeout")
	assert.Contains(t, out, "[1] Rybak MJ. Vancomycin therapeutic monitoring. 2020")
	assert.Contains(t, out, "PMID: 32658968")
}

func TestRetrieveCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "retrieve", "--json", "vancomycin")
	require.NoError(t, err)

	var got []retrievedCitation
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "32658968", got[0].PMID)
	assert.Equal(t, "local", got[0].Tier)
	assert.Equal(t, "unknown", got[0].StudyType)
}

func TestRetrieveCmd_NoResults(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.retrieval.evidence = domain.Evidence{Outcome: domain.OutcomeEvidenceIrrelevant, BelowThreshold: 4}

	out, err := execute(t, "retrieve", "carbapenem stewardship")
	require.NoError(t, err)
	assert.Contains(t, out, "Below threshold: 4")
	assert.Contains(t, out, "No results found.")
}

func TestFeedbackCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "feedback",
		"--scenario", "mrsa-1",
		"--title", "MRSA bacteraemia",
		"--objective", "AUC dosing",
		"--objective", "source control",
		"--difficulty", "advanced",
		"Start vancomycin 1 g q12h")
	require.NoError(t, err)

	req := ts.feedback.request
	assert.Equal(t, "mrsa-1", req.Scenario.ScenarioID)
	assert.Equal(t, "MRSA bacteraemia", req.Scenario.Title)
	assert.Equal(t, []string{"AUC dosing", "source control"}, req.Scenario.Objectives)
	assert.Equal(t, "advanced", req.DifficultyLevel)
	assert.Equal(t, "Start vancomycin 1 g q12h", req.LearnerInput)

	assert.True(t, strings.HasPrefix(out, "Consider AUC-guided dosing [1]."))
	assert.Contains(t, out, "Expert corrections: 1")
	assert.Contains(t, out, "Literature:         1 (evidence_found)")
	assert.Contains(t, out, "[1] Rybak MJ. Vancomycin therapeutic monitoring. 2020")
	assert.Contains(t, out, "Model: ollama/llama3.2")
}

func TestFeedbackCmd_RequiresScenario(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "feedback", "Start vancomycin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario")
}

func TestFeedbackCmd_ChainExhausted(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.feedback.err = domain.ErrLLMChainExhausted

	_, err := execute(t, "feedback", "--scenario", "s1", "answer")
	assert.ErrorIs(t, err, domain.ErrLLMChainExhausted)
}

func TestStatsCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.stats = driving.IngestionStats{
		Ledger: domain.LedgerStats{
			Documents:   10,
			Chunks:      240,
			NeedsReview: 2,
			ByMethod: map[domain.ExtractionMethod]int{
				domain.ExtractionEmbedded: 7,
				domain.ExtractionFilename: 2,
			},
		},
		Collections: map[string]int{"literature": 240, "expert_corrections": 5},
		Model:       "nomic-embed-text",
	}

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:    10")
	assert.Contains(t, out, "Needs review: 2")
	assert.Contains(t, out, "literature")
	assert.Contains(t, out, "Embedding model: nomic-embed-text")
	assert.Less(t, strings.Index(out, "expert_corrections"), strings.Index(out, "literature "))
}

func TestReviewListCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "review", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents need review.")

	ts.ingestion.review = []domain.IngestionRecord{{Metadata: domain.PaperMetadata{
		DocumentID:       "doc-9",
		Filename:         "IDSA_2019.pdf",
		Title:            "IDSA 2019",
		ExtractionMethod: domain.ExtractionFilename,
	}}}
	out, err = execute(t, "review", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 document(s) need review")
	assert.Contains(t, out, "IDSA_2019.pdf")
	assert.Contains(t, out, "ID: doc-9")
}

func TestReviewFailuresCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.failures = []domain.IngestionFailure{{
		Path:     "/papers/broken.pdf",
		Stage:    domain.StageRead,
		Error:    "no text layer",
		FailedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}}

	out, err := execute(t, "review", "failures")
	require.NoError(t, err)
	assert.Contains(t, out, "/papers/broken.pdf")
	assert.Contains(t, out, "Error: no text layer")
	assert.Contains(t, out, "At: 2024-03-01 09:30:00")
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, ":8080", flag.DefValue)
}

func TestServeCmd_RequiresFeedback(t *testing.T) {
	SetServices(nil)
	_, err := execute(t, "serve")
	require.Error(t, err)
}

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestMCPServeCmd_RequiresRetrieval(t *testing.T) {
	SetServices(nil)
	_, err := execute(t, "mcp", "serve")
	require.Error(t, err)
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

var (
	retrieveLimit    int
	retrieveJSON     bool
	retrieveExternal bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve ranked evidence for a query",
	Long: `Searches the local literature collection and falls back to PubMed and
Europe PMC full text when local evidence is below the similarity threshold.
Results are deduplicated and ranked by study type and similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "maximum number of results (0 = configured default)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	retrieveCmd.Flags().BoolVar(&retrieveExternal, "external", false, "always query external sources")
	rootCmd.AddCommand(retrieveCmd)
}

// retrievedCitation is the JSON form of one ranked result.
type retrievedCitation struct {
	Citation   string  `json:"citation"`
	PMID       string  `json:"pmid,omitempty"`
	DOI        string  `json:"doi,omitempty"`
	StudyType  string  `json:"study_type"`
	Tier       string  `json:"tier"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if err := requireService(retrievalService, "retrieval"); err != nil {
		return err
	}

	evidence, err := retrievalService.Retrieve(commandContext(cmd), driving.RetrievalQuery{
		Text:          args[0],
		MaxResults:    retrieveLimit,
		ForceExternal: retrieveExternal,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	ranked := rankEvidence(evidence)
	if retrieveJSON {
		return outputRetrieveJSON(cmd, ranked)
	}
	outputRetrieveTable(cmd, evidence, ranked)
	return nil
}

func rankEvidence(evidence domain.Evidence) []domain.RankedCitation {
	if citationRanker != nil {
		return citationRanker.Rank(evidence.Results)
	}
	return domain.UnrankedCitations(evidence.Results)
}

func outputRetrieveJSON(cmd *cobra.Command, ranked []domain.RankedCitation) error {
	out := make([]retrievedCitation, len(ranked))
	for i, rc := range ranked {
		out[i] = retrievedCitation{
			Citation:   rc.Result.Metadata.Citation(),
			PMID:       rc.Result.Metadata.ExternalID,
			DOI:        rc.Result.Metadata.DOI,
			StudyType:  string(rc.StudyType),
			Tier:       string(rc.Result.Tier),
			Similarity: rc.Result.Similarity,
			Score:      rc.Score,
			Text:       rc.Result.Text,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputRetrieveTable(cmd *cobra.Command, evidence domain.Evidence, ranked []domain.RankedCitation) {
	cmd.Printf("Outcome: %s\n", evidence.Outcome)
	for _, f := range evidence.Failures {
		cmd.Printf("Skipped %s: %s\n", f.Tier, f.Error)
	}
	if evidence.BelowThreshold > 0 {
		cmd.Printf("Below threshold: %d\n", evidence.BelowThreshold)
	}
	if len(ranked) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println()
	for i, rc := range ranked {
		cmd.Printf("  [%d] %s\n", i+1, rc.Result.Metadata.Citation())
		cmd.Printf("      %s, %s, similarity %.2f\n", rc.StudyType, rc.Result.Tier, rc.Result.Similarity)
		if pmid := rc.Result.Metadata.ExternalID; pmid != "" {
			cmd.Printf("      PMID: %s\n", pmid)
		}
		if snippet := snippet(rc.Result.Text, 160); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= n {
		return text
	}
	return domain.Truncate(text, n) + "..."
}

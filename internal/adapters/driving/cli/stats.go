package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long:  `Summarises the ingestion ledger and the size of each vector collection.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := requireService(ingestionService, "ingestion"); err != nil {
		return err
	}

	stats, err := ingestionService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Println("[Ledger]")
	cmd.Printf("  Documents:    %d\n", stats.Ledger.Documents)
	cmd.Printf("  Chunks:       %d\n", stats.Ledger.Chunks)
	cmd.Printf("  Needs review: %d\n", stats.Ledger.NeedsReview)
	cmd.Printf("  Failures:     %d\n", stats.Ledger.Failures)
	if len(stats.Ledger.ByMethod) > 0 {
		cmd.Println("  Metadata sources:")
		methods := make([]string, 0, len(stats.Ledger.ByMethod))
		for m := range stats.Ledger.ByMethod {
			methods = append(methods, string(m))
		}
		sort.Strings(methods)
		for _, m := range methods {
			cmd.Printf("    %-10s %d\n", m, stats.Ledger.ByMethod[domain.ExtractionMethod(m)])
		}
	}
	cmd.Println()

	cmd.Println("[Collections]")
	names := make([]string, 0, len(stats.Collections))
	for name := range stats.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd.Printf("  %-18s %d\n", name, stats.Collections[name])
	}
	if stats.Model != "" {
		cmd.Printf("  Embedding model: %s\n", stats.Model)
	}
	return nil
}

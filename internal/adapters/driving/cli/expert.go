package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var expertCmd = &cobra.Command{
	Use:   "expert",
	Short: "Manage expert corrections and exemplars",
}

var expertImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import expert knowledge from a YAML or JSON file",
	Long: `Validates, embeds and stores expert corrections and exemplar answers.

The file holds a "corrections" list and an "exemplars" list. Entries are keyed
by their ID, so importing the same file twice adds nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runExpertImport,
}

var expertStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored expert knowledge counts",
	RunE:  runExpertStats,
}

func init() {
	expertCmd.AddCommand(expertImportCmd)
	expertCmd.AddCommand(expertStatsCmd)
	rootCmd.AddCommand(expertCmd)
}

func runExpertImport(cmd *cobra.Command, args []string) error {
	if err := requireService(expertService, "expert"); err != nil {
		return err
	}
	if expertSource == nil {
		return errors.New("expert file loader not configured")
	}

	data, err := expertSource.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	report, err := expertService.Import(commandContext(cmd), data)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Corrections added: %d\n", report.CorrectionsAdded)
	cmd.Printf("Exemplars added:   %d\n", report.ExemplarsAdded)
	if report.Skipped > 0 {
		cmd.Printf("Skipped:           %d\n", report.Skipped)
	}
	return nil
}

func runExpertStats(cmd *cobra.Command, _ []string) error {
	if err := requireService(expertService, "expert"); err != nil {
		return err
	}
	corrections, exemplars := expertService.Counts()
	cmd.Printf("Corrections: %d\n", corrections)
	cmd.Printf("Exemplars:   %d\n", exemplars)
	return nil
}

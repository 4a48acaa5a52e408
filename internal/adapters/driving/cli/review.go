package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect documents that need attention",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents whose metadata fell back to the filename",
	RunE:  runReviewList,
}

var reviewFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List files that could not be indexed",
	RunE:  runReviewFailures,
}

func init() {
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewFailuresCmd)
	rootCmd.AddCommand(reviewCmd)
}

func runReviewList(cmd *cobra.Command, _ []string) error {
	if err := requireService(ingestionService, "ingestion"); err != nil {
		return err
	}

	records, err := ingestionService.NeedsReview(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No documents need review.")
		return nil
	}

	cmd.Printf("%d document(s) need review:\n\n", len(records))
	for i := range records {
		r := &records[i]
		cmd.Printf("  %s\n", r.Metadata.Filename)
		cmd.Printf("      ID: %s\n", r.Metadata.DocumentID)
		cmd.Printf("      Title: %s\n", r.Metadata.Title)
		cmd.Printf("      Method: %s\n", r.Metadata.ExtractionMethod)
	}
	return nil
}

func runReviewFailures(cmd *cobra.Command, _ []string) error {
	if err := requireService(ingestionService, "ingestion"); err != nil {
		return err
	}

	failures, err := ingestionService.Failures(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}
	if len(failures) == 0 {
		cmd.Println("No ingestion failures.")
		return nil
	}

	for _, f := range failures {
		cmd.Printf("  %s\n", f.Path)
		cmd.Printf("      Stage: %s\n", f.Stage)
		cmd.Printf("      Error: %s\n", f.Error)
		cmd.Printf("      At: %s\n", f.FailedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

var (
	ingestReindex bool
	ingestWatch   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Index literature into the vector store",
	Long: `Extracts metadata, chunks and embeds every supported document in the
directory. Documents already indexed by filename or PMID are skipped and
indexed files are moved to the processed sub-directory.

With --reindex the literature collection and ledger are wiped first and
processed documents are indexed again. With --watch the command keeps
running and indexes files as they appear.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReindex, "reindex", false, "rebuild the literature collection from scratch")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the directory for new files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestionService, "ingestion"); err != nil {
		return err
	}
	if newSource == nil {
		return errors.New("document source not configured")
	}

	dir := defaultSourceDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no source directory given and none configured")
	}

	src := newSource(dir)
	defer src.Close() //nolint:errcheck // watcher cleanup

	ctx := commandContext(cmd)
	if ingestWatch && !ingestReindex {
		return watchSource(cmd, src)
	}

	var (
		report domain.IngestReport
		err    error
	)
	if ingestReindex {
		report, err = ingestionService.Reindex(ctx, src)
	} else {
		report, err = ingestionService.IngestSource(ctx, src)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	for i := range report.Results {
		printIngestResult(cmd, report.Results[i])
	}
	cmd.Printf("\nIndexed: %d  Skipped: %d  Failed: %d\n",
		report.Count(domain.IngestIndexed),
		report.Count(domain.IngestSkipped),
		report.Count(domain.IngestFailed))

	if !ingestWatch {
		return nil
	}
	return watchSource(cmd, src)
}

func watchSource(cmd *cobra.Command, src driven.DocumentSource) error {
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", src.Root())
	ctx := commandContext(cmd)
	err := ingestionService.Watch(ctx, src, func(r domain.IngestResult) {
		printIngestResult(cmd, r)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printIngestResult(cmd *cobra.Command, r domain.IngestResult) {
	switch r.Status {
	case domain.IngestIndexed:
		title := r.Path
		if r.Metadata != nil && r.Metadata.Title != "" {
			title = r.Metadata.Title
		}
		flag := ""
		if r.Metadata != nil && r.Metadata.QualityFlag == domain.QualityLow {
			flag = " [needs review]"
		}
		cmd.Printf("  + %s (%d chunks)%s\n", title, r.Chunks, flag)
	case domain.IngestSkipped:
		cmd.Printf("  = %s (already indexed)\n", r.Path)
	case domain.IngestFailed:
		cmd.Printf("  ! %s: %v\n", r.Path, r.Err)
	}
}

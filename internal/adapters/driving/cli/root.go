// Package cli implements the asp-agent command line using cobra.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options tells the bootstrap where state lives and how to open it.
type Options struct {
	ConfigDir string
	DataDir   string

	// Rebuild drops vector collections whose dimension no longer matches
	// the embedding model. Set for ingest --reindex.
	Rebuild bool
}

// Services holds everything the commands call into.
type Services struct {
	Settings  driving.SettingsService
	Ingestion driving.IngestionService
	Expert    driving.ExpertService
	Retrieval driving.RetrievalService
	Ranker    driving.CitationRanker
	Feedback  driving.FeedbackService

	// ExpertSource parses expert import files.
	ExpertSource driven.ExpertSource

	// NewSource opens a document directory for ingestion.
	NewSource func(dir string) driven.DocumentSource

	// DefaultSourceDir is used when ingest is given no directory.
	DefaultSourceDir string

	// Close releases stores and AI clients.
	Close func() error
}

// BootstrapFunc builds the services once flags are parsed.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	settingsService  driving.SettingsService
	ingestionService driving.IngestionService
	expertService    driving.ExpertService
	retrievalService driving.RetrievalService
	citationRanker   driving.CitationRanker
	feedbackService  driving.FeedbackService
	expertSource     driven.ExpertSource
	newSource        func(dir string) driven.DocumentSource
	defaultSourceDir string
	closeServices    func() error
)

var (
	bootstrap BootstrapFunc
	options   Options
	verbose   bool
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "asp-agent",
	Short: "Evidence-grounded feedback for antimicrobial stewardship training",
	Long: `asp-agent indexes stewardship literature and expert knowledge, retrieves
evidence for learner answers and generates cited feedback.

Documents dropped into the source directory are extracted, chunked and
embedded into a local vector store. Feedback combines that literature with
PubMed results and expert corrections before prompting an LLM chain.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&options.ConfigDir, "config-dir", "", "configuration directory (default ~/.asp-agent)")
	rootCmd.PersistentFlags().StringVar(&options.DataDir, "data-dir", "", "data directory (default ~/.asp-agent/data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetBootstrap registers the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs services directly.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	settingsService = s.Settings
	ingestionService = s.Ingestion
	expertService = s.Expert
	retrievalService = s.Retrieval
	citationRanker = s.Ranker
	feedbackService = s.Feedback
	expertSource = s.ExpertSource
	newSource = s.NewSource
	defaultSourceDir = s.DefaultSourceDir
	closeServices = s.Close
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer logger.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts := options
	opts.Rebuild = cmd == ingestCmd && ingestReindex
	services, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireService(svc any, name string) error {
	if svc == nil {
		return errors.New(name + " service not configured")
	}
	return nil
}

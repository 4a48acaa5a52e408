package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/ai"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/config/file"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/expertfile"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/pubmed"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/storage/chromemdb"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/storage/sqlite"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driving/cli"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/connectors/filesystem"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/services"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers/docx"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers/html"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers/markdown"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers/pdf"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/normalisers/plaintext"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/postprocessors"
)

// bootstrap builds every store, adapter and service from the settings in
// opts.ConfigDir. Services that cannot be built are left out with a warning
// so commands that do not need them still run.
//
//nolint:funlen // Composition root.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configDir, dataDir, err := resolveDirs(opts)
	if err != nil {
		return nil, err
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	aiServices := ai.Initialise(ctx, settings)
	closers = append(closers, aiServices.Close)
	embedder := aiServices.EmbeddingService

	llm := services.NewLLMChain(aiServices.LLMBackends,
		services.WithLLMTimeout(settings.LLM.Timeout),
		services.WithLLMRetries(settings.LLM.MaxRetries),
	)

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		closeAll() //nolint:errcheck // already failing
		return nil, err
	}
	closers = append(closers, store.Close)
	ledger := store.Ledger()

	vectors, err := chromemdb.Open(filepath.Join(dataDir, "vectors"))
	if err != nil {
		closeAll() //nolint:errcheck // already failing
		return nil, err
	}

	dims := embeddingDimensions(settings, embedder)
	literature := openCollection(ctx, vectors, driven.CollectionLiterature, dims, opts.Rebuild)
	corrections := openCollection(ctx, vectors, driven.CollectionExpertCorrections, dims, false)
	exemplars := openCollection(ctx, vectors, driven.CollectionExpertExemplars, dims, false)

	readers := normalisers.NewRegistry(
		pdf.New(),
		plaintext.New(),
		markdown.New(),
		html.New(),
		docx.New(),
	)
	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	pipeline, err := processors.BuildPipeline(settings.Pipeline)
	if err != nil {
		closeAll() //nolint:errcheck // already failing
		return nil, err
	}

	result := &cli.Services{
		Settings:         settingsService,
		Ranker:           services.NewCitationRanker(),
		ExpertSource:     expertfile.New(),
		DefaultSourceDir: settings.Ingestion.SourceDir,
		NewSource: func(dir string) driven.DocumentSource {
			return filesystem.New(dir,
				filesystem.WithProcessedDir(settings.Ingestion.ProcessedDir),
				filesystem.WithFilter(readers.Supports),
			)
		},
		Close: closeAll,
	}

	if corrections != nil && exemplars != nil {
		result.Expert = services.NewExpertKnowledgeService(embedder, corrections, exemplars,
			services.WithExpertLimits(settings.Expert.MaxCorrections, settings.Expert.MaxExemplars),
		)
	}

	if literature != nil {
		result.Ingestion = services.NewIngestionService(
			readers,
			services.NewMetadataExtractor(llm, prompts),
			pipeline,
			embedder,
			literature,
			ledger,
			services.WithEmbeddingBatchSize(settings.Embedding.BatchSize),
			services.WithMoveProcessed(settings.Ingestion.MoveProcessed),
		)

		retrieverOpts := []services.RetrieverOption{
			services.WithMinSimilarity(settings.Retrieval.MinSimilarity),
			services.WithMaxResults(settings.Retrieval.MaxResults),
			services.WithFullTextTopN(settings.Retrieval.FullTextTopN),
			services.WithExternalEnabled(settings.Retrieval.ExternalEnabled),
		}
		if settings.Retrieval.ExternalEnabled {
			retrieverOpts = append(retrieverOpts, services.WithExternalSearch(
				pubmed.NewClient(pubmed.Config{
					APIKey:     settings.Retrieval.NCBIAPIKey,
					Email:      settings.Retrieval.NCBIEmail,
					Timeout:    settings.Retrieval.Timeout,
					MaxRetries: settings.Retrieval.MaxRetries,
				}),
				pubmed.NewFullTextClient(pubmed.FullTextConfig{
					Timeout:    settings.Retrieval.Timeout,
					MaxRetries: settings.Retrieval.MaxRetries,
				}),
			))
		}
		result.Retrieval = services.NewHierarchicalRetriever(embedder, literature, retrieverOpts...)
	}

	feedbackOpts := []services.FeedbackOption{
		services.WithMaxCitations(settings.Retrieval.MaxResults),
	}
	if result.Retrieval != nil {
		feedbackOpts = append(feedbackOpts, services.WithLiterature(result.Retrieval, result.Ranker))
	}
	if result.Expert != nil {
		feedbackOpts = append(feedbackOpts, services.WithExpertKnowledge(result.Expert))
	}
	result.Feedback = services.NewFeedbackGenerator(llm, services.NewPromptComposer(prompts), feedbackOpts...)

	logger.Debug("Bootstrapped with config %s, data %s, %d LLM backend(s)",
		configStore.Path(), dataDir, len(aiServices.LLMBackends))
	return result, nil
}

// resolveDirs fills in the default ~/.asp-agent layout.
func resolveDirs(opts cli.Options) (configDir, dataDir string, err error) {
	configDir = opts.ConfigDir
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".asp-agent")
	}
	dataDir = opts.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(configDir, "data")
	}
	return configDir, dataDir, nil
}

// embeddingDimensions prefers the live embedder, then the known size of the
// configured model.
func embeddingDimensions(settings *domain.AppSettings, embedder driven.EmbeddingService) int {
	if embedder != nil {
		return embedder.Dimensions()
	}
	if dims := domain.EmbeddingDimensions()[settings.Embedding.Model]; dims > 0 {
		return dims
	}
	return 768
}

// openCollection returns nil with a warning when the collection is unusable,
// for example after an embedding model change. With rebuild set, a
// collection of the wrong dimension is dropped and recreated empty.
func openCollection(ctx context.Context, db *chromemdb.DB, name string, dims int, rebuild bool) *chromemdb.VectorStore {
	c, err := db.Collection(ctx, name, dims)
	if err != nil && rebuild && errors.Is(err, domain.ErrReindexRequired) {
		if dropErr := db.DropCollection(name); dropErr != nil {
			logger.Warn("Collection %s could not be dropped: %v", name, dropErr)
			return nil
		}
		c, err = db.Collection(ctx, name, dims)
	}
	if err != nil {
		if errors.Is(err, domain.ErrReindexRequired) {
			logger.Warn("Collection %s needs rebuilding: %v", name, err)
		} else {
			logger.Warn("Collection %s unavailable: %v", name, err)
		}
		return nil
	}
	return c
}

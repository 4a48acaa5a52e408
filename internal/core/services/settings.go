package services

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedBatchSize = "embedding.batch_size"

	keyLLMBackends   = "llm.backends"
	keyLLMTimeout    = "llm.timeout"
	keyLLMMaxRetries = "llm.max_retries"

	keyRetrievalMinSimilarity = "retrieval.min_similarity"
	keyRetrievalMaxResults    = "retrieval.max_results"
	keyRetrievalExternal      = "retrieval.external_enabled"
	keyRetrievalFullTextTopN  = "retrieval.fulltext_top_n"
	keyRetrievalTimeout       = "retrieval.timeout"
	keyRetrievalMaxRetries    = "retrieval.max_retries"
	keyNCBIAPIKey             = "retrieval.ncbi_api_key"
	keyNCBIEmail              = "retrieval.ncbi_email"

	keyIngestSourceDir     = "ingestion.source_dir"
	keyIngestProcessedDir  = "ingestion.processed_dir"
	keyIngestMoveProcessed = "ingestion.move_processed"

	keyExpertMaxCorrections = "expert.max_corrections"
	keyExpertMaxExemplars   = "expert.max_exemplars"
)

// envAPIKeys maps providers to the environment variables holding their keys.
var envAPIKeys = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

const envNCBIAPIKey = "NCBI_API_KEY"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// API keys missing from the config file are read from the environment.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, defaults.Embedding.Provider)
	embedModel := s.configStore.GetString(keyEmbedModel)
	if embedModel == "" {
		embedModel = domain.DefaultEmbeddingModels()[embedProvider]
	}

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:  embedProvider,
			Model:     embedModel,
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:    s.secret(keyEmbedAPIKey, envAPIKeys[embedProvider]),
			BatchSize: s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
		},
		LLM: domain.LLMChainSettings{
			Backends:   s.getLLMBackends(),
			Timeout:    s.getDuration(keyLLMTimeout, defaults.LLM.Timeout),
			MaxRetries: s.getRetries(keyLLMMaxRetries, defaults.LLM.MaxRetries),
		},
		Retrieval: domain.RetrievalSettings{
			MinSimilarity:   s.getFloat(keyRetrievalMinSimilarity, defaults.Retrieval.MinSimilarity),
			MaxResults:      s.getInt(keyRetrievalMaxResults, defaults.Retrieval.MaxResults),
			ExternalEnabled: s.getBool(keyRetrievalExternal, defaults.Retrieval.ExternalEnabled),
			FullTextTopN:    s.getInt(keyRetrievalFullTextTopN, defaults.Retrieval.FullTextTopN),
			Timeout:         s.getDuration(keyRetrievalTimeout, defaults.Retrieval.Timeout),
			MaxRetries:      s.getRetries(keyRetrievalMaxRetries, defaults.Retrieval.MaxRetries),
			NCBIAPIKey:      s.secret(keyNCBIAPIKey, envNCBIAPIKey),
			NCBIEmail:       s.configStore.GetString(keyNCBIEmail),
		},
		Ingestion: domain.IngestionSettings{
			SourceDir:     s.configStore.GetString(keyIngestSourceDir),
			ProcessedDir:  s.getString(keyIngestProcessedDir, defaults.Ingestion.ProcessedDir),
			MoveProcessed: s.getBool(keyIngestMoveProcessed, defaults.Ingestion.MoveProcessed),
		},
		Expert: domain.ExpertSettings{
			MaxCorrections: s.getInt(keyExpertMaxCorrections, defaults.Expert.MaxCorrections),
			MaxExemplars:   s.getInt(keyExpertMaxExemplars, defaults.Expert.MaxExemplars),
		},
		Pipeline: s.GetPipelineConfig(),
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set, so keys that came from the
// environment are written back only if the caller put them there.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyLLMMaxRetries, settings.LLM.MaxRetries},
		{keyRetrievalMinSimilarity, settings.Retrieval.MinSimilarity},
		{keyRetrievalMaxResults, settings.Retrieval.MaxResults},
		{keyRetrievalExternal, settings.Retrieval.ExternalEnabled},
		{keyRetrievalFullTextTopN, settings.Retrieval.FullTextTopN},
		{keyRetrievalTimeout, settings.Retrieval.Timeout.String()},
		{keyRetrievalMaxRetries, settings.Retrieval.MaxRetries},
		{keyNCBIEmail, settings.Retrieval.NCBIEmail},
		{keyIngestSourceDir, settings.Ingestion.SourceDir},
		{keyIngestProcessedDir, settings.Ingestion.ProcessedDir},
		{keyIngestMoveProcessed, settings.Ingestion.MoveProcessed},
		{keyExpertMaxCorrections, settings.Expert.MaxCorrections},
		{keyExpertMaxExemplars, settings.Expert.MaxExemplars},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.getenv(envAPIKeys[settings.Embedding.Provider]) {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	// Save LLM backends in chain order, one table per provider.
	providers := make([]string, 0, len(settings.LLM.Backends))
	for _, b := range settings.LLM.Backends {
		providers = append(providers, b.Provider.String())
		prefix := "llm." + b.Provider.String() + "."
		if err := s.configStore.Set(prefix+"model", b.Model); err != nil {
			return fmt.Errorf("save llm %s model: %w", b.Provider, err)
		}
		if err := s.configStore.Set(prefix+"base_url", b.BaseURL); err != nil {
			return fmt.Errorf("save llm %s base_url: %w", b.Provider, err)
		}
		if b.APIKey != "" && b.APIKey != s.getenv(envAPIKeys[b.Provider]) {
			if err := s.configStore.Set(prefix+"api_key", b.APIKey); err != nil {
				return fmt.Errorf("save llm %s api_key: %w", b.Provider, err)
			}
		}
	}
	if err := s.configStore.Set(keyLLMBackends, providers); err != nil {
		return fmt.Errorf("save llm backends: %w", err)
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.getenv(envAPIKeys[provider])
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// AddLLMBackend appends a provider to the language model chain, or updates
// it in place when it is already part of the chain.
func (s *SettingsService) AddLLMBackend(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if apiKey == "" {
		apiKey = s.getenv(envAPIKeys[provider])
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	backend := domain.LLMSettings{
		Provider: provider,
		Model:    model,
		APIKey:   apiKey,
	}
	if backend.Model == "" {
		backend.Model = domain.DefaultLLMModels()[provider]
	}
	if provider.IsLocal() {
		backend.BaseURL = "http://localhost:11434"
	}

	idx := slices.IndexFunc(settings.LLM.Backends, func(b domain.LLMSettings) bool {
		return b.Provider == provider
	})
	if idx >= 0 {
		if existing := settings.LLM.Backends[idx].BaseURL; existing != "" && provider.IsLocal() {
			backend.BaseURL = existing
		}
		settings.LLM.Backends[idx] = backend
	} else {
		settings.LLM.Backends = append(settings.LLM.Backends, backend)
	}

	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
}

// ValidateLLMConfig validates every configured backend of the chain.
func (s *SettingsService) ValidateLLMConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	backends := settings.LLM.Configured()
	if len(backends) == 0 {
		return domain.ErrLLMUnavailable
	}
	for i := range backends {
		if err := s.aiValidator.ValidateLLM(ctx, &backends[i]); err != nil {
			return fmt.Errorf("%s: %w", backends[i].Label(), err)
		}
	}
	return nil
}

// getLLMBackends reads the chain order from llm.backends and each
// provider's settings from its llm.<provider> table.
func (s *SettingsService) getLLMBackends() []domain.LLMSettings {
	var backends []domain.LLMSettings
	seen := make(map[domain.AIProvider]bool)
	for _, name := range s.configStore.GetStringSlice(keyLLMBackends) {
		provider := domain.AIProvider(name)
		if !provider.IsValid() || seen[provider] {
			continue
		}
		seen[provider] = true

		prefix := "llm." + name + "."
		backends = append(backends, domain.LLMSettings{
			Provider: provider,
			Model:    s.getString(prefix+"model", domain.DefaultLLMModels()[provider]),
			BaseURL:  s.configStore.GetString(prefix + "base_url"),
			APIKey:   s.secret(prefix+"api_key", envAPIKeys[provider]),
		})
	}
	return backends
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// secret reads key from config, falling back to the environment variable.
func (s *SettingsService) secret(key, envVar string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	if envVar == "" {
		return ""
	}
	return s.getenv(envVar)
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getRetries is like getInt but accepts an explicit zero.
func (s *SettingsService) getRetries(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	if val := s.configStore.GetInt(key); val >= 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if val, ok := s.configStore.GetFloat(key); ok {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	str := s.configStore.GetString(key)
	if str == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(str)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	defaults := domain.DefaultPipelineConfig()

	// Try to load processors list from config
	if processors := s.configStore.GetStringSlice("pipeline.processors"); len(processors) > 0 {
		defaults.Processors = processors
	}

	// Load per-processor configs
	for _, name := range defaults.Processors {
		prefix := "pipeline." + name + "."
		cfg := s.loadProcessorConfig(prefix)
		if len(cfg) > 0 {
			if defaults.ProcessorConfigs == nil {
				defaults.ProcessorConfigs = make(map[string]map[string]any)
			}
			// Merge with existing defaults
			existing := defaults.ProcessorConfigs[name]
			if existing == nil {
				existing = make(map[string]any)
			}
			for k, v := range cfg {
				existing[k] = v
			}
			defaults.ProcessorConfigs[name] = existing
		}
	}

	return defaults
}

// loadProcessorConfig loads config keys with a given prefix into a map.
func (s *SettingsService) loadProcessorConfig(prefix string) map[string]any {
	cfg := make(map[string]any)

	knownKeys := []string{"chunk_size", "overlap"}
	for _, key := range knownKeys {
		fullKey := prefix + key
		if val, exists := s.configStore.Get(fullKey); exists {
			cfg[key] = val
		}
	}

	return cfg
}

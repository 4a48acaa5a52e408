package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string

	// BatchSize is the number of chunks embedded per request.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds configuration for a single LLM backend.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic/Gemini).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// Label identifies the backend in logs and responses.
func (l LLMSettings) Label() string {
	if l.Model == "" {
		return l.Provider.String()
	}
	return fmt.Sprintf("%s/%s", l.Provider, l.Model)
}

// LLMChainSettings configures the ordered LLM fallback chain.
type LLMChainSettings struct {
	// Backends are tried in order until one succeeds.
	Backends []LLMSettings

	// Timeout bounds a single attempt against one backend.
	Timeout time.Duration

	// MaxRetries is the number of retries per backend after the first attempt.
	MaxRetries int
}

// Configured returns the backends that are fully set up.
func (c LLMChainSettings) Configured() []LLMSettings {
	var out []LLMSettings
	for _, b := range c.Backends {
		if b.IsConfigured() {
			out = append(out, b)
		}
	}
	return out
}

// RetrievalSettings configures hierarchical retrieval.
type RetrievalSettings struct {
	// MinSimilarity is the relevance bar for local results.
	MinSimilarity float64

	// MaxResults caps the merged result list.
	MaxResults int

	// ExternalEnabled allows the external search tiers.
	ExternalEnabled bool

	// FullTextTopN is how many external results get a full-text fetch.
	FullTextTopN int

	// Timeout bounds each outbound bibliographic call.
	Timeout time.Duration

	// MaxRetries is the number of retries per outbound call.
	MaxRetries int

	// NCBIAPIKey raises the PubMed rate limit when set.
	NCBIAPIKey string

	// NCBIEmail is sent to NCBI as the contact address.
	NCBIEmail string
}

// IngestionSettings configures document ingestion.
type IngestionSettings struct {
	// SourceDir is the directory scanned for new documents.
	SourceDir string

	// ProcessedDir is the sub-directory indexed files are moved into.
	ProcessedDir string

	// MoveProcessed enables moving indexed files out of SourceDir.
	MoveProcessed bool
}

// ExpertSettings configures expert knowledge lookups.
type ExpertSettings struct {
	// MaxCorrections is the number of corrections included in a prompt.
	MaxCorrections int

	// MaxExemplars is the number of exemplars included in a prompt.
	MaxExemplars int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds the LLM fallback chain.
	LLM LLMChainSettings

	// Retrieval holds hierarchical retrieval settings.
	Retrieval RetrievalSettings

	// Ingestion holds ingestion settings.
	Ingestion IngestionSettings

	// Expert holds expert knowledge settings.
	Expert ExpertSettings

	// Pipeline holds chunking pipeline settings.
	Pipeline PipelineConfig
}

// Defaults for settings not present in configuration.
const (
	DefaultMinSimilarity     = 0.35
	DefaultMaxResults        = 5
	DefaultFullTextTopN      = 2
	DefaultExternalTimeout   = 15 * time.Second
	DefaultLLMTimeout        = 60 * time.Second
	DefaultMaxRetries        = 2
	DefaultEmbeddingBatch    = 32
	DefaultChunkSize         = 512
	DefaultChunkOverlap      = 50
	DefaultMaxCorrections    = 3
	DefaultMaxExemplars      = 2
	DefaultProcessedDirName  = "processed"
	DefaultEmbeddingProvider = AIProviderOllama
)

// DefaultAppSettings returns settings with sensible defaults.
// LLM backends are left unconfigured; the user lists them in config.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  DefaultEmbeddingProvider,
			Model:     DefaultEmbeddingModels()[DefaultEmbeddingProvider],
			BatchSize: DefaultEmbeddingBatch,
		},
		LLM: LLMChainSettings{
			Timeout:    DefaultLLMTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Retrieval: RetrievalSettings{
			MinSimilarity:   DefaultMinSimilarity,
			MaxResults:      DefaultMaxResults,
			ExternalEnabled: true,
			FullTextTopN:    DefaultFullTextTopN,
			Timeout:         DefaultExternalTimeout,
			MaxRetries:      DefaultMaxRetries,
		},
		Ingestion: IngestionSettings{
			ProcessedDir:  DefaultProcessedDirName,
			MoveProcessed: true,
		},
		Expert: ExpertSettings{
			MaxCorrections: DefaultMaxCorrections,
			MaxExemplars:   DefaultMaxExemplars,
		},
		Pipeline: DefaultPipelineConfig(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-1.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
		"embedding-001":      768,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": DefaultChunkSize,
				"overlap":    DefaultChunkOverlap,
			},
		},
	}
}

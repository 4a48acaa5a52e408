package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDisplayAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", displayAPIKey(""))
	assert.Equal(t, "sk-1...cdef", displayAPIKey("sk-1234567890abcdef"))
}

func TestSettingsProblems(t *testing.T) {
	settings := domain.DefaultAppSettings()
	assert.Equal(t, []string{"no configured LLM backend"}, settingsProblems(&settings))

	settings.Embedding.Provider = domain.AIProviderOpenAI
	settings.LLM.Backends = []domain.LLMSettings{{Provider: domain.AIProviderAnthropic}}
	assert.Equal(t, []string{
		"embedding provider is not configured",
		"no configured LLM backend",
	}, settingsProblems(&settings))

	settings.Embedding.APIKey = "sk-test"
	settings.LLM.Backends = append(settings.LLM.Backends, domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"})
	assert.Empty(t, settingsProblems(&settings))
}

func TestSettingsShowCmd(t *testing.T) {
	defer SetServices(nil)
	SetServices(&Services{Settings: &stubSettingsService{settings: domain.AppSettings{
		Embedding: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small", APIKey: "sk-1234567890abcdef"},
		LLM: domain.LLMChainSettings{
			Backends: []domain.LLMSettings{
				{Provider: domain.AIProviderOllama, Model: "llama3.2", BaseURL: "http://localhost:11434"},
				{Provider: domain.AIProviderAnthropic, Model: "claude-3-5-sonnet-latest"},
			},
			MaxRetries: 2,
		},
		Ingestion: domain.IngestionSettings{ProcessedDir: "processed"},
	}}})

	out, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.Contains(t, out, "1. ollama/llama3.2 (configured)")
	assert.Contains(t, out, "2. anthropic/claude-3-5-sonnet-latest (not configured)")
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Source directory: (not set)")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShowCmd_NotConfigured(t *testing.T) {
	SetServices(nil)
	_, err := execute(t, "settings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}

// stubSettingsService implements driving.SettingsService.
type stubSettingsService struct {
	settings domain.AppSettings
}

func (s *stubSettingsService) Get() (*domain.AppSettings, error) {
	settings := s.settings
	return &settings, nil
}

func (s *stubSettingsService) Save(settings *domain.AppSettings) error {
	s.settings = *settings
	return nil
}

func (s *stubSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	s.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (s *stubSettingsService) AddLLMBackend(provider domain.AIProvider, model, apiKey string) error {
	s.settings.LLM.Backends = append(s.settings.LLM.Backends, domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey})
	return nil
}

func (s *stubSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *stubSettingsService) ValidateEmbeddingConfig(context.Context) error { return nil }

func (s *stubSettingsService) ValidateLLMConfig(context.Context) error { return nil }

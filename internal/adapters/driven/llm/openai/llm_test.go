package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	require.Error(t, err)

	s, err := NewLLMService(LLMConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
	assert.NoError(t, s.Close())
}

func TestLLMService_Generate(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Use AUC dosing."},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)

	s, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := s.Generate(context.Background(), "How should vancomycin be monitored?", driven.GenerateOptions{
		System:      "You are an ID pharmacist.",
		MaxTokens:   200,
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Use AUC dosing.", text)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, 200, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
}

func TestLLMService_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"quota"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantErr: domain.ErrRateLimited},
		{name: "server error", status: http.StatusBadGateway, body: `{}`, wantErr: domain.ErrExternalServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			s, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = s.Generate(context.Background(), "prompt", driven.GenerateOptions{})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
)

func TestOpenAIProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.NotNil(t, req.Temperature)
		assert.Zero(t, *req.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)

		json.NewEncoder(w).Encode(openaiResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openaiChoice{{
				Message:      openaiMessage{Role: "assistant", Content: `{"answer":"hi"}`},
				FinishReason: "stop",
			}},
			Usage:   openaiUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
			Created: 1700000000,
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.ProviderConfig{
		Name: "openai", BaseURL: server.URL + "/", APIKey: "test-key", Model: "gpt-4o-mini",
	}, newTestLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "Reply in JSON."},
			{Role: domain.RoleUser, Content: "hello"},
		},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"hi"}`, resp.Message.Content)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, time.Unix(1700000000, 0), resp.CreatedAt)
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProviderNoResponseFormatWithoutJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, has := raw["response_format"]
		assert.False(t, has)
		json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "plain"}}}})
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "openai", BaseURL: server.URL}, newTestLogger())
	resp, err := p.Chat(context.Background(), domain.ChatRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "plain", resp.Message.Content)
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":"slow down"}`, domain.ErrRateLimit},
		{"auth", http.StatusUnauthorized, `{"error":"bad key"}`, domain.ErrAuthInvalid},
		{"server", http.StatusBadGateway, `oops`, domain.ErrProviderError},
		{"no choices", http.StatusOK, `{"choices":[]}`, domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewOpenAIProvider(config.ProviderConfig{Name: "openai", BaseURL: server.URL}, newTestLogger())
			_, err := p.Chat(context.Background(), domain.ChatRequest{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestOpenAIProviderMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "openai", BaseURL: server.URL}, newTestLogger())
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestOpenAIProviderContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "openai", BaseURL: server.URL}, newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Chat(ctx, domain.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

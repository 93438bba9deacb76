package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)
	require.NotNil(t, p)
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 120*time.Second, p.Client.Timeout)
	assert.NotNil(t, p.Logger)
	assert.NotNil(t, p.Limiter)
}

func TestNew_TimeoutCustom(t *testing.T) {
	p := New(Config{ProviderName: "t", Timeout: 10 * time.Second}, zap.NewNop())
	assert.Equal(t, 10*time.Second, p.Client.Timeout)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestProvider_Completion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body providers.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "codestral-latest", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.InDelta(t, 0.3, body.Temperature, 1e-6)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providers.ChatCompletionResponse{
			ID:    "cmpl-1",
			Model: "codestral-latest",
			Choices: []providers.ChatCompletionChoice{{
				FinishReason: "stop",
				Message:      providers.WireMessage{Role: "assistant", Content: "import bpy"},
			}},
			Usage:   &providers.ChatCompletionUsage{TotalTokens: 42},
			Created: 1700000000,
		})
	}))
	defer server.Close()

	p := New(Config{
		ProviderName: "mistral",
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "codestral-latest",
	}, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You write Blender scripts."},
			{Role: llm.RoleUser, Content: "a river"},
		},
		Temperature: 0.3,
	})
	require.NoError(t, err)
	content, ok := resp.FirstContent()
	assert.True(t, ok)
	assert.Equal(t, "import bpy", content)
	assert.Equal(t, "mistral", resp.Provider)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestProvider_Completion_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   llm.ErrorCode
	}{
		{"rate limited", http.StatusTooManyRequests, `{"message":"Requests rate limit exceeded"}`, llm.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, llm.ErrUnauthorized},
		{"server error", http.StatusInternalServerError, `oops`, llm.ErrUpstreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := New(Config{ProviderName: "mistral", BaseURL: server.URL}, nil)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{})
			require.Error(t, err)

			llmErr, ok := err.(*llm.Error)
			require.True(t, ok)
			assert.Equal(t, tt.code, llmErr.Code)
			assert.Equal(t, tt.status, llmErr.HTTPStatus)
		})
	}
}

func TestProvider_Completion_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	p := New(Config{ProviderName: "mistral", BaseURL: server.URL}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, llm.ErrEmptyResponse, err.(*llm.Error).Code)
	assert.False(t, llm.IsFatal(err))
}

func TestProvider_Completion_CancelledWhilePaced(t *testing.T) {
	p := New(Config{ProviderName: "mistral", BaseURL: "http://127.0.0.1:0", RequestsPerMinute: 1}, nil)
	// drain the single burst token
	require.True(t, p.Limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Completion(ctx, &llm.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	ok := New(Config{ProviderName: "mistral", BaseURL: server.URL, APIKey: "good"}, nil)
	status, err := ok.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	bad := New(Config{ProviderName: "mistral", BaseURL: server.URL, APIKey: "bad"}, nil)
	status, err = bad.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.True(t, llm.IsFatal(err))
}

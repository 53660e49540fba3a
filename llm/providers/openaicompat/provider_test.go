package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/llmcouncil/llm"
	"github.com/BaSui01/llmcouncil/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		logger       *zap.Logger
		wantEndpoint string
		wantModels   string
	}{
		{
			name:         "all defaults applied",
			cfg:          Config{ProviderName: "test"},
			wantEndpoint: "/v1/chat/completions",
			wantModels:   "/v1/models",
		},
		{
			name: "custom endpoint paths preserved",
			cfg: Config{
				ProviderName:   "custom",
				EndpointPath:   "/api/chat",
				ModelsEndpoint: "/api/models",
			},
			logger:       zap.NewNop(),
			wantEndpoint: "/api/chat",
			wantModels:   "/api/models",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg, tt.logger)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantEndpoint, p.Cfg.EndpointPath)
			assert.Equal(t, tt.wantModels, p.Cfg.ModelsEndpoint)
			assert.Equal(t, tt.cfg.ProviderName, p.Name())
			assert.NotNil(t, p.Client)
			assert.NotNil(t, p.Logger)
		})
	}
}

func TestNew_TimeoutDefault(t *testing.T) {
	p := New(Config{ProviderName: "t"}, nil)
	assert.Equal(t, 120*time.Second, p.Client.Timeout)
}

func TestNew_TimeoutCustom(t *testing.T) {
	p := New(Config{ProviderName: "t", Timeout: 10 * time.Second}, nil)
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
		assert.Equal(t, "trace-1", r.Header.Get("X-Request-ID"))

		var body providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-5", body.Model)
		assert.InDelta(t, 0.7, body.Temperature, 0.001)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			ID:    "resp-1",
			Model: "gpt-5",
			Choices: []providers.OpenAICompatChoice{{
				Index:        0,
				FinishReason: "stop",
				Message:      providers.OpenAICompatMessage{Role: "assistant", Content: "Paris"},
			}},
			Usage:   &providers.OpenAICompatUsage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6},
			Created: 1700000000,
		})
	}))
	defer server.Close()

	p := New(Config{ProviderName: "openai", APIKey: "test-key", BaseURL: server.URL}, zap.NewNop())
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		TraceID:     "trace-1",
		Model:       "gpt-5",
		Temperature: 0.7,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "capital of France?"}},
	})
	require.NoError(t, err)

	content, ok := resp.FirstContent()
	require.True(t, ok)
	assert.Equal(t, "Paris", content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	assert.Equal(t, time.Unix(1700000000, 0), resp.CreatedAt)
}

func TestProvider_Completion_DefaultModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fallback-model", body.Model)
		_ = json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			Choices: []providers.OpenAICompatChoice{{Message: providers.OpenAICompatMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer server.Close()

	p := New(Config{ProviderName: "p", BaseURL: server.URL, DefaultModel: "fallback-model"}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestProvider_Completion_HTTPErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      llm.ErrorCode
		wantRetryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, llm.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, true},
		{"quota", http.StatusBadRequest, `{"error":{"message":"quota exhausted"}}`, llm.ErrQuotaExceeded, false},
		{"bad gateway", http.StatusBadGateway, `upstream down`, llm.ErrUpstreamError, true},
		{"overloaded", 529, `{"error":{"message":"overloaded"}}`, llm.ErrModelOverloaded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := New(Config{ProviderName: "p", BaseURL: server.URL}, nil)
			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Model:    "m",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)

			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, tt.wantRetryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.HTTPStatus)
		})
	}
}

func TestProvider_Completion_EmptyMessages(t *testing.T) {
	p := New(Config{ProviderName: "p"}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestProvider_Completion_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	p := New(Config{ProviderName: "p", BaseURL: server.URL}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Timeout:  50 * time.Millisecond,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUpstreamTimeout, llmErr.Code)
}

// ---------------------------------------------------------------------------
// HealthCheck
// ---------------------------------------------------------------------------

func TestProvider_HealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := New(Config{ProviderName: "p", BaseURL: server.URL}, nil)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	unhealthy.Store(true)
	status, err = p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}

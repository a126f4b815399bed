package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl-platform/studyowl/internal/config"
)

func testClient(serverURL string) *Client {
	return NewClient(config.OpenAIConfig{
		BaseURL:        serverURL,
		ChatModel:      "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		Timeout:        5 * time.Second,
	})
}

func TestClient_ChatCompletion(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-123",
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Mitochondria produce ATP."}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 1200, "completion_tokens": 45, "total_tokens": 1245},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	messages := []Message{
		TextMessage(RoleSystem, "You answer exam questions."),
		{Role: RoleUser, Content: []ContentPart{
			{Type: "text", Text: "Which answer is correct?"},
			ImagePart("data:image/jpeg;base64,abc123"),
		}},
	}

	result, err := client.ChatCompletion(context.Background(), "sk-user-key", messages, 512)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-user-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody.Model)
	assert.Equal(t, 512, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "image_url", gotBody.Messages[1].Content[1].Type)

	assert.Equal(t, "Mitochondria produce ATP.", result.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", result.Model)
	assert.Equal(t, 1200, result.Usage.PromptTokens)
	assert.Equal(t, 45, result.Usage.CompletionTokens)
}

func TestClient_ChatCompletion_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Incorrect API key provided", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ChatCompletion(context.Background(), "sk-bad", []Message{TextMessage(RoleUser, "hi")}, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Contains(t, err.Error(), "401")
}

func TestClient_ChatCompletion_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ChatCompletion(context.Background(), "sk-key", []Message{TextMessage(RoleUser, "hi")}, 0)
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": []float32{0.1, -0.2, 0.3}}},
			"usage": map[string]int{"prompt_tokens": 8, "total_tokens": 8},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	vector, usage, err := client.Embed(context.Background(), "sk-key", "cell biology summary")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, -0.2, 0.3}, vector)
	assert.Equal(t, 8, usage.PromptTokens)
}

func TestClient_VerifyKey(t *testing.T) {
	t.Run("accepted key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/models", r.URL.Path)
			require.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "Bearer sk-good", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		}))
		defer server.Close()

		assert.NoError(t, testClient(server.URL).VerifyKey(context.Background(), "sk-good"))
	})

	t.Run("rejected key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "Invalid authentication"},
			})
		}))
		defer server.Close()

		err := testClient(server.URL).VerifyKey(context.Background(), "sk-bad")
		assert.ErrorContains(t, err, "Invalid authentication")
	})

	t.Run("unreachable service", func(t *testing.T) {
		client := testClient("http://127.0.0.1:1")
		assert.Error(t, client.VerifyKey(context.Background(), "sk-key"))
	})
}

func TestCostFor(t *testing.T) {
	tests := []struct {
		name             string
		model            string
		prompt, complete int
		expected         float64
	}{
		{"gpt-4o", "gpt-4o", 1_000_000, 0, 2.50},
		{"gpt-4o completion", "gpt-4o", 0, 1_000_000, 10.00},
		{"mini mixed", "gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"versioned suffix matches base", "gpt-4o-2024-08-06", 1_000_000, 0, 2.50},
		{"embedding model", "text-embedding-3-small", 1_000_000, 0, 0.02},
		{"unknown model uses fallback", "some-future-model", 1_000_000, 0, 2.50},
		{"zero tokens", "gpt-4o", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CostFor(tt.model, tt.prompt, tt.complete), 1e-9)
		})
	}
}

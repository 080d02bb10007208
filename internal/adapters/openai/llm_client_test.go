package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	v := config.NewEmptyViper()
	v.Set("openai.base_url", server.URL+"/v1")
	v.Set("openai.model_name", "test-model")

	client, err := NewFactory(config.NewFromViper(v), zap.NewNop()).CreateClient()
	require.NoError(t, err)
	return client
}

func TestOpenAIClient_Complete(t *testing.T) {
	var captured map[string]any
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": `{"suggestedDuration":30}`},
					"finish_reason": "stop",
				},
			},
		})
	})

	text, err := client.Complete(context.Background(), &core.Prompt{System: "be brief", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"suggestedDuration":30}`, text)

	assert.Equal(t, "test-model", captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "hello", messages[1].(map[string]any)["content"])
	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	})

	_, err := client.Complete(context.Background(), &core.Prompt{User: "hello"})
	assert.Error(t, err)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := client.Complete(context.Background(), &core.Prompt{User: "hello"})
	assert.Error(t, err)
}

func TestFactory_RequiresKeyOrBaseURL(t *testing.T) {
	_, err := NewFactory(config.NewFromViper(config.NewEmptyViper()), zap.NewNop()).CreateClient()
	assert.Error(t, err)
}

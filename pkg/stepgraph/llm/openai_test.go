package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func openaiServer(t *testing.T, status int, body string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const chatReply = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini-2024",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "a tweet"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

func TestOpenAI_Complete(t *testing.T) {
	var got chatRequest
	srv := openaiServer(t, http.StatusOK, chatReply, &got)

	client := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL+"/v1"))
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are funny.",
		Messages: []llm.Message{
			llm.UserMessage("write a tweet"),
			{Role: llm.RoleAssistant, Content: "draft"},
		},
		MaxTokens: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "a tweet", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)
	assert.Equal(t, llm.TokenUsage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, llm.DefaultOpenAIModel, got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are funny.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
}

func TestOpenAI_ModelPrecedence(t *testing.T) {
	var got chatRequest
	srv := openaiServer(t, http.StatusOK, chatReply, &got)

	client := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL+"/v1"), llm.WithModel("client-model"))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}})
	require.NoError(t, err)
	assert.Equal(t, "client-model", got.Model)

	_, err = client.Complete(context.Background(), llm.CompletionRequest{Model: "request-model", Messages: []llm.Message{llm.UserMessage("x")}})
	require.NoError(t, err)
	assert.Equal(t, "request-model", got.Model)
}

func TestOpenAI_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv := openaiServer(t, http.StatusInternalServerError,
			`{"error": {"message": "boom", "type": "server_error"}}`, nil)
		client := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL+"/v1"))

		_, err := client.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}})
		var perr *llm.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "openai", perr.Provider)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := openaiServer(t, http.StatusOK, `{"id": "x", "choices": []}`, nil)
		client := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL+"/v1"))

		_, err := client.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}})
		assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := openaiServer(t, http.StatusOK, chatReply, nil)
		client := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL+"/v1"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.Complete(ctx, llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
)

// LLM providers accepted in the llm.provider setting.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// ErrMissingAPIKey is returned when the openai provider is selected without
// OPENAI_API_KEY.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// selectClient picks the model client for a run. With no provider configured
// it uses OpenAI when an API key is present and the offline mock otherwise.
func selectClient(s config.LLMSettings, getenv func(string) string) (llm.Client, string, error) {
	key := getenv("OPENAI_API_KEY")
	provider := s.Provider
	if provider == "" {
		provider = ProviderMock
		if key != "" {
			provider = ProviderOpenAI
		}
	}

	switch provider {
	case ProviderOpenAI:
		if key == "" {
			return nil, "", ErrMissingAPIKey
		}
		var opts []llm.OpenAIOption
		if s.Model != "" {
			opts = append(opts, llm.WithModel(s.Model))
		}
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = getenv("OPENAI_BASE_URL")
		}
		if baseURL != "" {
			opts = append(opts, llm.WithBaseURL(baseURL))
		}
		client := llm.WithRetry(llm.NewOpenAI(key, opts...), llm.WithMaxAttempts(s.MaxAttempts))
		return client, ProviderOpenAI, nil
	case ProviderMock:
		return offlineClient(), ProviderMock, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", provider)
	}
}

const (
	offlineTweet   = "My code compiles on the first try. I have never been more suspicious of anything in my life."
	offlineVerdict = `{"evaluation": "approved", "feedback": "Offline mock: approved without review."}`
)

// offlineClient answers JSON-seeking prompts with an approving verdict and
// everything else with a canned tweet.
func offlineClient() *llm.MockClient {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		content := offlineTweet
		if strings.Contains(req.SystemPrompt, "JSON") {
			content = offlineVerdict
		}
		return &llm.CompletionResponse{Content: content, Model: ProviderMock, FinishReason: "stop"}, nil
	})
}

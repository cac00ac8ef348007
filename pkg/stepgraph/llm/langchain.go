package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Langchain adapts any langchaingo model to Client.
type Langchain struct {
	model llms.Model
	name  string
}

// NewLangchain wraps model. name is reported as the provider in errors and as
// the response model when the request does not set one.
func NewLangchain(model llms.Model, name string) *Langchain {
	if name == "" {
		name = "langchain"
	}
	return &Langchain{model: model, name: name}
}

// Complete implements Client.
func (l *Langchain) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(langchainRole(m.Role), m.Content))
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}

	resp, err := l.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: l.name, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, &ProviderError{Provider: l.name, Err: ErrEmptyResponse}
	}

	choice := resp.Choices[0]
	model := req.Model
	if model == "" {
		model = l.name
	}
	return &CompletionResponse{
		Content:      choice.Content,
		Usage:        usageFromGenerationInfo(choice.GenerationInfo),
		Model:        model,
		FinishReason: choice.StopReason,
		Duration:     time.Since(start),
	}, nil
}

func langchainRole(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// usageFromGenerationInfo reads the token counts the OpenAI-style providers
// report. Missing counts stay zero.
func usageFromGenerationInfo(info map[string]any) TokenUsage {
	count := func(key string) int {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
		return 0
	}
	u := TokenUsage{
		InputTokens:  count("PromptTokens"),
		OutputTokens: count("CompletionTokens"),
		TotalTokens:  count("TotalTokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

var _ Client = (*Langchain)(nil)

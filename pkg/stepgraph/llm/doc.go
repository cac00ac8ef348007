// Package llm is the language-model capability steps use.
//
// A Client is injected through the run's context rather than held globally:
//
//	ctx := llm.WithClient(context.Background(), llm.NewOpenAI(apiKey))
//	final, err := compiled.Invoke(stepgraph.NewContext(ctx), input)
//
// Inside a step:
//
//	client := llm.FromContext(ctx)
//	if client == nil {
//	    return nil, llm.ErrNoClient
//	}
//	resp, err := client.Complete(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
//	})
//
// Implementations: OpenAI (go-openai), Langchain (any langchaingo llms.Model),
// and MockClient for tests and offline runs. ParseJSON turns a model reply
// into a typed value, repairing malformed JSON when it can. WithRetry wraps
// any Client with backoff for rate limits and server errors.
package llm

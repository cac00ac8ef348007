package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client performs completions.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Sentinel errors.
var (
	// ErrNoClient is returned by steps that need a Client when none was
	// injected.
	ErrNoClient = errors.New("llm client not configured")

	// ErrEmptyResponse means the provider returned no choices.
	ErrEmptyResponse = errors.New("llm returned no choices")
)

// ProviderError wraps a failure reported by a provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type clientKey struct{}

// WithClient returns a context carrying c.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// FromContext returns the injected Client, or nil.
func FromContext(ctx context.Context) Client {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

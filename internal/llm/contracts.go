package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider is a structured-extraction model endpoint. It receives already-cleansed text and the
// findings JSON Schema and returns the raw model output.
type Provider interface {
	Name() string
	Extract(ctx context.Context, cleansedText string, fieldSchema map[string]any) ([]byte, error)
}

// ProviderError carries the transport status of a failed provider call. Status 0 means no response.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable is true for network failures, throttling and server errors.
func (e *ProviderError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

type strictKey struct{}

// WithStrictMode marks a provider call as the retry after malformed output.
func WithStrictMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, strictKey{}, true)
}

// IsStrict reports whether providers should use the stricter instruction.
func IsStrict(ctx context.Context) bool {
	v, _ := ctx.Value(strictKey{}).(bool)
	return v
}

// Package llmgate asks a language model whether a crawled page belongs in a
// land. The gate is optional and fails open.
package llmgate

import (
	"context"
	"errors"
	"fmt"
)

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is a single model answer.
type Completion struct {
	Content string
	Usage   Usage
}

// Provider is a synchronous chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, model string, temperature float64) (Completion, error)
}

// TransientError marks a provider failure worth retrying: rate limits,
// server errors and timeouts.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}

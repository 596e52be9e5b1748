// Package llm talks to text generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when the model answered without text.
	ErrEmptyContent = errors.New("llm: empty response from model")
	// ErrNotConfigured is returned by clients that have no credentials.
	ErrNotConfigured = errors.New("llm: provider not configured")
)

// Request is one model call: a system prompt and one user message.
type Request struct {
	System      string
	User        string
	Model       string // overrides the client default when set
	Temperature float32
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object
}

// Client issues a single request and returns the raw text.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

// StatusCode extracts the provider status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Package gateway is the engine's boundary to the model provider. It sends a
// prompt plus sampling parameters to a named model and returns generated
// text with the provider's own token accounting, either as one completed
// response or as a single-use stream of chunks.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds surfaced to the engine. Every provider failure maps to one
// of these so callers can branch with errors.Is instead of string matching.
var (
	ErrRateLimited       = errors.New("provider rate limited the request")
	ErrInvalidModel      = errors.New("model is not known to the provider")
	ErrTimeout           = errors.New("provider request timed out")
	ErrMalformedResponse = errors.New("provider returned a malformed response")
)

// APIError is a provider call failure with its HTTP context attached.
// Unwrap yields one of the sentinel failure kinds above.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// Request carries everything needed for one model invocation.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Completion is a fully received model response. Token counts come from the
// provider's usage accounting, never from client-side re-tokenization.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Chunk is one increment of a streamed response. The final chunk has Final
// set and carries the provider's usage accounting; its Text is empty.
type Chunk struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Final        bool
}

// Stream is a finite, single-use sequence of chunks terminated by a Final
// chunk. Chunks must be drained from Chunks until it closes; Err reports
// why the stream ended early, if it did. Close releases the underlying
// connection and may be called at any point.
type Stream struct {
	chunks <-chan Chunk
	err    *error
	done   <-chan struct{}
	cancel func()
}

// Chunks returns the chunk channel. It is closed after the Final chunk or
// after a stream error; check Err once it closes.
func (s *Stream) Chunks() <-chan Chunk { return s.chunks }

// Err returns the error that terminated the stream early, or nil after a
// clean end-of-stream. Only valid after Chunks has closed.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return *s.err
	default:
		return nil
	}
}

// Close aborts the stream. Safe to call more than once.
func (s *Stream) Close() { s.cancel() }

// Gateway is the outbound interface to the model provider.
type Gateway interface {
	// Invoke blocks until the full completion is received.
	Invoke(ctx context.Context, req Request) (*Completion, error)

	// InvokeStream returns the response as a stream of chunks; the arrival
	// of the first chunk anchors time-to-first-token measurement.
	InvokeStream(ctx context.Context, req Request) (*Stream, error)
}

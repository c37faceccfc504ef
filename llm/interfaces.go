package llm

import (
	"context"
)

// Client provides a provider-neutral interface for making LLM API calls.
// Implementations handle provider-specific wire details internally and
// never let vendor SDK error types cross this boundary.
type Client interface {
	// Synchronous sends a request and returns a complete response.
	Synchronous(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a request and returns a stream of events. The stream
	// is finite, single-consumer, and not restartable; the caller must
	// read until Next returns false and then Close it. Adapters without
	// streaming support return ErrStreamingUnsupported.
	Stream(ctx context.Context, req *Request) (Stream, error)

	// ListModels returns the models this provider currently offers.
	// Adapters may hit the vendor API; the registry's static model list
	// is the source of truth for validation.
	ListModels(ctx context.Context) ([]string, error)

	// ValidateCredential reports whether the bound credential is accepted
	// by the vendor. It performs a minimal live request.
	ValidateCredential(ctx context.Context) bool
}

// Stream represents a streaming response from an LLM.
type Stream interface {
	// Next advances to the next event in the stream.
	// Returns false when the stream is complete or an error occurs.
	Next() bool

	// Event returns the current event.
	// Should only be called after Next() returns true.
	Event() *StreamEvent

	// Err returns any error that occurred during streaming.
	Err() error

	// Close closes the stream and releases resources.
	Close() error
}

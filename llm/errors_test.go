package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorPredicates(t *testing.T) {
	after := 30 * time.Second
	credential := NewCredentialError("bad key", nil)
	rateLimit := NewRateLimitError("slow down", &after, nil)
	provider := NewProviderError("boom", errors.New("upstream"))

	if !IsCredentialError(credential) || IsCredentialError(rateLimit) {
		t.Error("IsCredentialError misclassifies")
	}
	if !IsRateLimitError(rateLimit) || IsRateLimitError(credential) {
		t.Error("IsRateLimitError misclassifies")
	}
	if !IsRetryableError(rateLimit) {
		t.Error("rate limits are retryable")
	}
	if IsRetryableError(credential) || IsRetryableError(provider) {
		t.Error("credential and generic provider errors are not retryable")
	}
	if IsRetryableError(nil) {
		t.Error("nil is not retryable")
	}
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("calling vendor: %w", NewCredentialError("bad key", nil))
	if !IsCredentialError(wrapped) {
		t.Error("predicates should see through wrapping")
	}
}

func TestExtractRetryAfter(t *testing.T) {
	after := 42 * time.Second
	err := NewRateLimitError("slow down", &after, nil)
	got := ExtractRetryAfter(err)
	if got == nil || *got != after {
		t.Errorf("ExtractRetryAfter = %v", got)
	}
	if ExtractRetryAfter(errors.New("plain")) != nil {
		t.Error("plain errors carry no retry-after")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("upstream")
	err := NewProviderError("boom", inner)
	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the provider error")
	}
}

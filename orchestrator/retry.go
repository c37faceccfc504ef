package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/parley-ai/parley/llm"
)

const (
	// DefaultMaxRetries bounds retries of a single provider call.
	DefaultMaxRetries = 5
	// DefaultMaxElapsedTime caps total time spent retrying one call.
	DefaultMaxElapsedTime = 5 * time.Minute
	// DefaultMaxInterval caps the delay between attempts.
	DefaultMaxInterval = 5 * time.Minute
	// DefaultInitialDelay seeds exponential backoff when the vendor
	// gave no retry-after hint.
	DefaultInitialDelay = 1 * time.Second

	retryAfterMultiplier          = 1.5
	retryAfterRandomizationFactor = 0.1
	standardMultiplier            = 2.0
	standardRandomizationFactor   = 0.2
)

// newRetryBackoff builds the backoff policy for one provider call. A
// vendor-supplied retry-after hint becomes the initial delay.
func newRetryBackoff(ctx context.Context, retryAfter time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if retryAfter > 0 {
		eb.InitialInterval = retryAfter
		eb.Multiplier = retryAfterMultiplier
		eb.RandomizationFactor = retryAfterRandomizationFactor
	} else {
		eb.InitialInterval = DefaultInitialDelay
		eb.Multiplier = standardMultiplier
		eb.RandomizationFactor = standardRandomizationFactor
	}
	eb.MaxInterval = DefaultMaxInterval
	eb.MaxElapsedTime = DefaultMaxElapsedTime

	return backoff.WithContext(backoff.WithMaxRetries(eb, DefaultMaxRetries), ctx)
}

// generateWithRetry calls the provider, retrying only errors the
// taxonomy marks retryable. The first failure's retry-after hint, if
// any, seeds the backoff policy.
func generateWithRetry(ctx context.Context, client llm.Client, req *llm.Request) (*llm.Response, error) {
	resp, err := client.Synchronous(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !llm.IsRetryableError(err) {
		return nil, err
	}

	var hint time.Duration
	if after := llm.ExtractRetryAfter(err); after != nil {
		hint = *after
	}

	operation := func() error {
		resp, err = client.Synchronous(ctx, req)
		if err == nil {
			return nil
		}
		if llm.IsRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(operation, newRetryBackoff(ctx, hint)); err != nil {
		return nil, err
	}
	return resp, nil
}

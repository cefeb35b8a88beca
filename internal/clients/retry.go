package clients

import (
	"context"
	"math/rand"
	"time"

	"github.com/dspygo/simba/internal/simbaerr"
)

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// +/- 20% jitter.
	delta := time.Duration(rand.Int63n(int64(d) / 5))
	if rand.Intn(2) == 0 {
		return d - delta
	}
	return d + delta
}

// RetryingClient wraps a Client with a retry policy: up to MaxRetries
// retries on transient error kinds, exponential backoff with jitter
// between attempts, no retry on non-transient kinds.
type RetryingClient struct {
	Inner      Client
	MaxRetries int
	Backoff    BackoffSchedule
}

// NewRetryingClient builds a RetryingClient with a default of 2
// retries.
func NewRetryingClient(inner Client) *RetryingClient {
	return &RetryingClient{Inner: inner, MaxRetries: 2, Backoff: DefaultBackoffSchedule()}
}

// Request implements Client.
func (r *RetryingClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		resp, err := r.Inner.Request(ctx, messages, config)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == r.MaxRetries {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, simbaerr.Wrap(simbaerr.KindTimeout, "context cancelled during retry backoff", ctx.Err())
		case <-time.After(r.Backoff.Wait(attempt)):
		}
	}
	return nil, lastErr
}

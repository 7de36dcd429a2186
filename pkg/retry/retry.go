// Package retry provides bounded exponential backoff for calls to external
// services. Each boundary decides which of its errors are worth retrying.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures a bounded exponential backoff
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles on each retry
	BaseDelay time.Duration
	// MaxDelay caps a single wait, zero means uncapped
	MaxDelay time.Duration
	// Retryable classifies an error; nil treats every error as terminal
	Retryable func(error) bool
}

// Notify is called before each wait with the failed attempt number (1-based)
type Notify func(err error, attempt int, wait time.Duration)

// Delays returns the waits the policy would apply between attempts
func (p Policy) Delays() []time.Duration {
	b := p.backOff()
	b.Reset()
	out := make([]time.Duration, 0, p.MaxRetries)
	for i := 0; i < p.MaxRetries; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// Do runs fn until it succeeds, returns a terminal error, the retry budget is
// spent, or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, notify Notify, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
	)

	operation := func() error {
		attempt++
		res, err := fn(ctx)
		if err == nil {
			result = res
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var b backoff.BackOff = backoff.WithMaxRetries(p.backOff(), uint64(max(p.MaxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(err, attempt, wait)
		}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Package retry repeats an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls how often and how fast an operation is retried.
type Policy struct {
	Attempts    int           // total attempts, 0 retries until ctx is done
	InitialWait time.Duration // wait after the first failure
	MaxWait     time.Duration // cap on a single wait
	Multiplier  float64
	Jitter      float64 // fraction of the wait, 0-1

	// OnRetry, when set, is called before each wait
	OnRetry func(attempt int, wait time.Duration, err error)
}

// NewPolicy returns a policy with the given attempt count and first wait,
// doubling up to ten seconds with 10% jitter.
func NewPolicy(attempts int, initialWait time.Duration) Policy {
	return Policy{
		Attempts:    attempts,
		InitialWait: initialWait,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. Errors not marked are
// returned immediately.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable
func IsRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// Do runs fn until it succeeds, fails with an error not marked retryable,
// runs out of attempts or ctx is done. The last error is returned with the
// retryable marker removed.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		if p.Attempts > 0 && attempt >= p.Attempts {
			return zero, errors.Unwrap(err)
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		wait := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, errors.Unwrap(err))
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}

func (p Policy) backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(attempt-1))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}
	if p.Jitter > 0 {
		wait += wait * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

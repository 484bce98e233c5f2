// Package retry implements exponential backoff for rate-limited external calls.
package retry

import (
	"context"
	"time"

	"triage_server/pkg/apperr"
)

// Policy controls retry behavior.
type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	IsRetryable func(error) bool
}

// DefaultPolicy matches the provider budgets used across the pipeline:
// 5 retries, 1s base delay, doubling per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  5,
		BaseDelay:   time.Second,
		IsRetryable: apperr.IsTransient,
	}
}

// Do runs fn, retrying transient failures with exponential backoff
// (BaseDelay * 2^attempt). Non-transient errors and exhausted budgets
// propagate to the caller unchanged.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxRetries <= 0 && p.BaseDelay == 0 {
		p = DefaultPolicy()
	}
	if p.IsRetryable == nil {
		p.IsRetryable = apperr.IsTransient
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !p.IsRetryable(lastErr) || attempt == p.MaxRetries {
			return lastErr
		}

		delay := p.BaseDelay << uint(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

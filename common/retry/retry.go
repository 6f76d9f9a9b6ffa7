// Package retry re-runs short operations that fail for transient reasons,
// such as a SQLite write that hit a busy lock.
//
// It is deliberately not used for LLM completions: a failed completion falls
// back to a scripted reply instead of being retried.
//
//	err := retry.Do(ctx, retry.Policy{Attempts: 4, Retryable: isBusy}, func() error {
//	    return store.Set(ctx, key, value)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy describes how many times to try and how long to wait in between.
type Policy struct {
	// Attempts is the total number of calls including the first one.
	// Values below 1 mean a single call.
	Attempts int
	// Delay is the wait before the second call. It doubles after each
	// failure and is capped at MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	// Retryable classifies errors. A nil Retryable retries every error.
	Retryable func(err error) bool
	// OnRetry, when set, is called before each wait with the attempt that
	// just failed (starting at 1).
	OnRetry func(attempt int, err error)
}

// Default suits local storage contention: a handful of quick attempts.
var Default = Policy{
	Attempts: 4,
	Delay:    25 * time.Millisecond,
	MaxDelay: 500 * time.Millisecond,
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = Default.Delay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = Default.MaxDelay
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	if p.Retryable == nil {
		p.Retryable = func(error) bool { return true }
	}
	return p
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. The last error from fn is returned, joined with
// the context error when cancellation cut the loop short.
func Do(ctx context.Context, p Policy, fn func() error) error {
	p = p.normalized()

	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) || attempt == p.Attempts {
			return lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		slog.Debug("retry: transient failure", "attempt", attempt, "max", p.Attempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}

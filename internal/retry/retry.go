// Package retry provides the exponential-backoff retry helper shared by
// every component that owns transient I/O (embedding adapter, stores,
// crawler fetches), per §7's "retried inside the component that owns the
// call" policy. Errors are classified by model.ErrorKind so only the
// retryable kinds are retried.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"ptolemies/internal/model"
)

// Options configures a retry run.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultOptions is 3 attempts of exponential backoff with jitter, capped
// at 5s between attempts.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do runs fn, retrying while the returned error is retryable per
// model.ErrorKind.Retryable, up to opts.MaxAttempts, with exponential
// backoff and full jitter between attempts. It stops early and returns
// immediately on ctx cancellation or a non-retryable error.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perr *model.Error
		retryable := errors.As(err, &perr) && perr.Kind.Retryable()
		if !retryable || attempt == opts.MaxAttempts-1 {
			return lastErr
		}

		delay := backoffDelay(opts, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func backoffDelay(opts Options, attempt int) time.Duration {
	d := opts.BaseDelay << attempt
	if opts.MaxDelay > 0 && d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	// full jitter avoids a thundering herd of retries against shared stores.
	return time.Duration(rand.Int63n(int64(d) + 1))
}

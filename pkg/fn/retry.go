package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts controls Retry's attempt count and backoff schedule.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry is a moderate schedule for transient upstream failures.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retry calls f until it succeeds or MaxAttempts is reached, doubling the
// wait between attempts. A cancelled context aborts the wait immediately.
// At least one attempt is always made.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	wait := opts.InitialWait
	for attempt := 1; ; attempt++ {
		r := f(ctx)
		if r.IsOk() || attempt >= opts.MaxAttempts {
			return r
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}
		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

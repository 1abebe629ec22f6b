package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by Call when no token is available.
var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures a token bucket.
type LimiterOpts struct {
	// Rate is tokens added per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter is a token bucket rate limiter. The bucket starts full.
type Limiter struct {
	mu     sync.Mutex
	opts   LimiterOpts
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewLimiter builds a Limiter. Burst values below 1 are raised to 1.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{opts: opts, tokens: float64(opts.Burst), now: time.Now}
}

// take refills from elapsed time and consumes a token when one is
// available. Returns the remaining deficit otherwise.
func (l *Limiter) take() (ok bool, deficit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() {
		l.tokens += now.Sub(l.last).Seconds() * l.opts.Rate
		if l.tokens > float64(l.opts.Burst) {
			l.tokens = float64(l.opts.Burst)
		}
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	return false, 1 - l.tokens
}

// Allow consumes a token if one is available without blocking.
func (l *Limiter) Allow() bool {
	ok, _ := l.take()
	return ok
}

// Wait blocks until a token can be consumed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, deficit := l.take()
		if ok {
			return nil
		}
		wait := time.Duration(deficit / l.opts.Rate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Call runs f if a token is available, otherwise returns ErrRateLimited.
func (l *Limiter) Call(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return f(ctx)
}

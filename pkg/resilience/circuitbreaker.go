// Package resilience provides circuit breaker and rate limiter primitives
// for calls to flaky upstreams.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aeolus-energy/turbobot/pkg/fn"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without invoking the wrapped call while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker. Zero fields take the defaults.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that trips the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// HalfOpenMax caps concurrent probe calls while half-open.
	HalfOpenMax int
}

// DefaultBreakerOpts trips after 5 failures and probes after 30 seconds.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is a consecutive-failure circuit breaker. After FailThreshold
// failures in a row it rejects calls for Timeout, then lets a limited
// number of probes through; one probe success closes it again.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    State
	failures int
	openedAt time.Time
	probes   int
	now      func() time.Time
}

// NewBreaker builds a Breaker, filling zero options from DefaultBreakerOpts.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State reports the breaker position, moving open to half-open once the
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position()
}

// position must be called with mu held.
func (b *Breaker) position() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// admit decides whether a call may proceed right now.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.position() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

// settle records the outcome of an admitted call.
func (b *Breaker) settle(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failed {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.probes = 0
		}
		return
	}
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failures = 0
}

// Call runs f through the breaker, returning ErrCircuitOpen when it is
// not admitting calls.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.settle(err != nil)
	return err
}

// CallResult is Call for fn.Result-returning functions.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.admit(); err != nil {
		return fn.Err[T](err)
	}
	r := f(ctx)
	b.settle(r.IsErr())
	return r
}

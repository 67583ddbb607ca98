// Package retry wraps idempotent reads with exponential backoff.
// Only transient (connectivity) failures are retried; every other error
// returns immediately. The last failure is always surfaced, never swallowed.
package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"groupmeet/contract"
	"groupmeet/errors"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

// Connectivity is the process-scoped backend reachability flag.
// Initialized at startup, updated by probe runs, never torn down.
type Connectivity struct {
	mu     sync.Mutex
	online bool
}

func NewConnectivity() *Connectivity {
	return &Connectivity{online: true}
}

func (c *Connectivity) Set(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = online
}

func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

type Retrier struct {
	log         *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	probe       contract.IConnectivityProbe // optional
	status      *Connectivity               // optional, updated from probe results
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a Retrier with the given budget. probe and status may
// be nil; a probe run between attempts does not count as an attempt.
func NewRetrier(log *slog.Logger, maxAttempts int, baseDelay time.Duration,
	probe contract.IConnectivityProbe, status *Connectivity) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Retrier{
		log:         log,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		probe:       probe,
		status:      status,
		sleep:       sleepCtx,
	}
}

// WithSleep replaces the delay function. Tests inject a recording fake
// instead of waiting for real backoff.
func (r *Retrier) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Retrier {
	r.sleep = sleep
	return r
}

// Do runs op up to maxAttempts times, doubling the delay after each
// transient failure (base, 2*base, ...). Non-transient errors and context
// cancellation stop the loop immediately.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == r.maxAttempts {
			break
		}

		r.log.Warn("Transient failure, backing off",
			"attempt", attempt, "delay", delay, "err", lastErr)

		if err := r.sleep(ctx, delay); err != nil {
			return lastErr
		}
		delay *= 2

		if r.probe != nil {
			online := r.probe.Check(ctx)
			if r.status != nil {
				r.status.Set(online)
			}
			if !online {
				r.log.Warn("Connectivity probe reports backend unreachable")
			}
		}
	}

	r.log.Error("Retry budget exhausted", "attempts", r.maxAttempts, "err", lastErr)
	return lastErr
}

// Fetch is the value-returning form of Retrier.Do.
func Fetch[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

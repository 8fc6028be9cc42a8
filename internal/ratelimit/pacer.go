// Package ratelimit paces outbound work so upstream services are not hammered.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces calls at least interval apart. The first call is never delayed.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
	waits    atomic.Int64
}

// NewPacer creates a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait blocks until the next call may start or ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	p.waits.Add(1)
	return p.limiter.Wait(ctx)
}

// Interval returns the configured spacing
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Waits returns how many times Wait has been called
func (p *Pacer) Waits() int64 {
	return p.waits.Load()
}

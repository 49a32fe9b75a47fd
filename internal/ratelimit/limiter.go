// Package ratelimit paces agent behaviours to a target operation rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer limits how often an agent may start an operation. One Pacer belongs to
// one agent; agents never share a pacer so that each runs at the full rate.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows hz operations per second with no burst. A rate of zero or
// less disables pacing.
func NewPacer(hz float64) *Pacer {
	limit := rate.Limit(hz)
	if hz <= 0 {
		limit = rate.Inf
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next operation may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Rate returns the target in operations per second. Zero means unpaced.
func (p *Pacer) Rate() float64 {
	if p.limiter.Limit() == rate.Inf {
		return 0
	}
	return float64(p.limiter.Limit())
}

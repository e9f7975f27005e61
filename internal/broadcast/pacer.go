package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer decides when the next tick may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer spaces ticks at least interval apart.
type RatePacer struct {
	limiter *rate.Limiter
}

func NewRatePacer(interval time.Duration) *RatePacer {
	return &RatePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// FramePacer runs one tick per host frame.
type FramePacer struct {
	frames <-chan uint64
}

func NewFramePacer(frames <-chan uint64) *FramePacer {
	return &FramePacer{frames: frames}
}

func (p *FramePacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.frames:
		return nil
	}
}

type unpaced struct{}

func (unpaced) Wait(ctx context.Context) error { return ctx.Err() }

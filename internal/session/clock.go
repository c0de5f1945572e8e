package session

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRefreshRate is the display refresh rate the loop paces itself to.
const DefaultRefreshRate = 60

// Clock paces the capture loop: Wait returns once per display refresh.
type Clock interface {
	Wait(ctx context.Context) error
}

// RefreshClock ticks at a fixed rate. Ticks missed while a cycle runs long
// are not queued up.
type RefreshClock struct {
	limiter *rate.Limiter
}

// NewRefreshClock returns a clock ticking hz times per second.
func NewRefreshClock(hz float64) *RefreshClock {
	if hz <= 0 {
		hz = DefaultRefreshRate
	}
	return &RefreshClock{limiter: rate.NewLimiter(rate.Limit(hz), 1)}
}

// Wait blocks until the next tick or until ctx is done.
func (c *RefreshClock) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

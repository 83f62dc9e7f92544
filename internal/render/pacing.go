package render

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces scene-level operations by a minimum interval across all
// workers. A nil Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer that admits one operation per interval, or nil when
// interval is not positive.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return nil
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next slot opens or ctx ends, in which case it returns
// ctx.Err() and gives the slot back.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil || p == nil {
		return err
	}
	res := p.limiter.Reserve()
	if err := sleepWithContext(ctx, res.Delay()); err != nil {
		res.Cancel()
		return err
	}
	return nil
}

// RetryPolicy bounds extra encode attempts per scene. The zero value never
// retries.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Delay returns the wait before retry number attempt (1-based), doubling each
// time up to MaxBackoff.
func (r RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || r.Backoff <= 0 {
		return 0
	}
	delay := r.Backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.MaxBackoff > 0 && delay >= r.MaxBackoff {
			return r.MaxBackoff
		}
	}
	if r.MaxBackoff > 0 && delay > r.MaxBackoff {
		return r.MaxBackoff
	}
	return delay
}

// sleepWithContext blocks for d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

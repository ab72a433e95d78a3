package payment

import (
	"context"
	"time"
)

// SecondsLeft is the whole number of seconds until expiresAt, never negative.
func SecondsLeft(expiresAt, now time.Time) int64 {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// Countdown reports the time left until a fixed deadline. Every report is
// computed from the deadline and the current clock, so ticks lost while the
// process was suspended do not skew it.
type Countdown struct {
	ExpiresAt time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run calls fn with the seconds left right away and then on every tick. It
// returns after reporting zero or when ctx is done, whichever comes first.
func (c Countdown) Run(ctx context.Context, tick time.Duration, fn func(secondsLeft int64)) {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	left := SecondsLeft(c.ExpiresAt, now())
	fn(left)
	if left == 0 {
		return
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			left = SecondsLeft(c.ExpiresAt, now())
			fn(left)
			if left == 0 {
				return
			}
		}
	}
}

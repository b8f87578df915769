package round

import "time"

// Clock is a countdown derived from a wall-clock start time, so throttled
// ticks never drift: every reading recomputes elapsed from start.
type Clock struct {
	limit     time.Duration
	start     time.Time
	stoppedAt time.Time
	running   bool
	now       func() time.Time
}

// NewClock returns a stopped clock of the given limit.
func NewClock(limit time.Duration, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{limit: limit, now: now}
}

// Start (re)starts the countdown from the full limit.
func (c *Clock) Start() {
	c.start = c.now()
	c.running = true
}

// Stop freezes the remaining time.
func (c *Clock) Stop() {
	if c.running {
		c.stoppedAt = c.now()
		c.running = false
	}
}

// Running reports whether the countdown is live.
func (c *Clock) Running() bool { return c.running }

// Remaining is limit - elapsed, clamped to [0, limit].
func (c *Clock) Remaining() time.Duration {
	if c.start.IsZero() {
		return c.limit
	}
	end := c.now()
	if !c.running {
		end = c.stoppedAt
	}
	left := c.limit - end.Sub(c.start)
	return min(max(left, 0), c.limit)
}

// RemainingSeconds rounds the remaining time down to whole seconds.
func (c *Clock) RemainingSeconds() int { return int(c.Remaining() / time.Second) }

// Expired reports whether a started clock reached zero.
func (c *Clock) Expired() bool { return !c.start.IsZero() && c.Remaining() == 0 }

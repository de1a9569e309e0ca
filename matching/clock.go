package matching

import (
	"sync/atomic"
	"time"
)

// Clock issues the timestamps that order arrivals and trades.
type Clock interface {
	// Now returns a value strictly greater than any value returned before
	Now() int64
}

// MonotonicClock follows a wall clock in nanoseconds but never repeats or goes back:
// when the wall clock stalls or steps backwards it advances by one nanosecond.
type MonotonicClock struct {
	last atomic.Int64
	wall func() time.Time
}

// NewMonotonicClock creates a clock on time.Now
func NewMonotonicClock() *MonotonicClock {
	return NewMonotonicClockWith(time.Now)
}

// NewMonotonicClockWith creates a clock on a custom wall source (tests, replays)
func NewMonotonicClockWith(wall func() time.Time) *MonotonicClock {
	return &MonotonicClock{wall: wall}
}

func (c *MonotonicClock) Now() int64 {
	for {
		last := c.last.Load()
		ts := c.wall().UnixNano()
		if ts <= last {
			ts = last + 1
		}
		if c.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}

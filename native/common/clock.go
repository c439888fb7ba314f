package common

import "time"

// Clock supplies the monotonic block timestamp (unix seconds) engines read
// as "now".
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// ManualClock is a settable clock for tests and replay tooling.
type ManualClock struct {
	ts uint64
}

// NewManualClock starts a clock at ts.
func NewManualClock(ts uint64) *ManualClock { return &ManualClock{ts: ts} }

func (c *ManualClock) Now() uint64 { return c.ts }

// Set moves the clock to ts. Moving backwards is ignored.
func (c *ManualClock) Set(ts uint64) {
	if ts > c.ts {
		c.ts = ts
	}
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d uint64) { c.ts += d }

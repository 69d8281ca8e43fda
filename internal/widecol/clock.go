package widecol

import (
	"sync/atomic"
	"time"
)

// Clock stamps every column write and deletion.
//
// The store resolves conflicting writes by timestamp (last write wins);
// this layer only supplies the stamps.
type Clock interface {
	Now() int64
}

// WallClock returns wall-clock microseconds, the store's usual convention.
// Stamps are strictly increasing within one process even when the system
// clock stalls or steps back.
//
// Thread-safety: WallClock is safe for concurrent use (atomic operations).
type WallClock struct {
	last atomic.Int64
}

// NewWallClock creates a wall clock.
func NewWallClock() *WallClock {
	return &WallClock{}
}

// Now returns the next timestamp.
func (c *WallClock) Now() int64 {
	for {
		now := time.Now().UnixMicro()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// LogicalClock is a monotonic counter for deterministic stamps.
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a logical clock starting at 0.
// The first call to Now returns 1.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a logical clock resuming from start.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Now returns the next sequence number and increments the clock.
func (c *LogicalClock) Now() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued number without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}

package testutil

import "sync"

// DeterministicClock stamps writes with 1, 2, 3, ... and implements
// widecol.Clock.
//
// Unlike widecol.LogicalClock, DeterministicClock can be reset so the same
// scenario replays with identical timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Now() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now increments and returns the next timestamp.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued timestamp without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Set moves the clock so the next call to Now() returns seq+1. Tests use it
// to issue a deliberately stale or future stamp.
func (c *DeterministicClock) Set(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = seq
}

// Reset resets the clock to 0.
func (c *DeterministicClock) Reset() {
	c.Set(0)
}

package heat

import "sync/atomic"

// Clock is the session-wide sequence counter used for recency ordering.
//
// Every local click and every remote adoption takes a fresh value from Next.
// The clock is moved past the cache with AdvanceTo before any click, so a new
// value always exceeds every stored sequence. Sequence numbers order activity
// for eviction only; counts never depend on them.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward to at least seq. It never moves backward.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

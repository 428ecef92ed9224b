package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the executor's logical clock. Every applied instruction is
// stamped with a strictly increasing seq; ordering never uses wall time.
//
// Thread-safety: Clock is safe for concurrent use. Shard loops share one
// Clock, so seqs are unique across the whole executor.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used on startup to continue from the journal's last seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies the wall time the executor stamps onto records.
// Callers never supply timestamps.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the host clock. If the host clock steps backwards the
// stamped timestamps do too; monotonicity is not enforced here.
type SystemTime struct{}

// Now returns time.Now().
func (SystemTime) Now() time.Time {
	return time.Now()
}

// unixSeconds converts t to the record's timestamp unit. Times before the
// epoch clamp to 1 so a stamped field is never confused with "unset".
func unixSeconds(t time.Time) uint64 {
	s := t.Unix()
	if s < 1 {
		return 1
	}
	return uint64(s)
}

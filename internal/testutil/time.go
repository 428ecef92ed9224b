package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a SteppingTime reports unless told
// otherwise: 2024-01-01T09:00:00Z.
var DefaultEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// SteppingTime is a deterministic wall clock for tests.
//
// Each call to Now returns the previous value plus Step, starting at Start.
// Applied timestamps are therefore strictly increasing and identical on
// every run, which golden traces depend on.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SteppingTime struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewSteppingTime creates a clock that starts at start and advances by step
// on every Now call. A zero start means DefaultEpoch; a step below one
// second means one second, since records store whole seconds.
func NewSteppingTime(start time.Time, step time.Duration) *SteppingTime {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step < time.Second {
		step = time.Second
	}
	return &SteppingTime{start: start, step: step}
}

// Now returns the next instant.
//
// Implements engine.TimeSource.
func (s *SteppingTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.start.Add(time.Duration(s.calls) * s.step)
	s.calls++
	return t
}

// Calls returns how many times Now has been called.
func (s *SteppingTime) Calls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reset rewinds the clock so the next Now returns start again.
func (s *SteppingTime) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
}

// Package internal provides time sources for the kinematic package.
package internal

import "time"

// Clock supplies the timestamps a Tracker uses to derive dt between updates.
type Clock interface {
	// Now returns the current time. Successive calls must not go backwards.
	Now() time.Time
}

// MonotonicClock reads time.Now, which carries a monotonic reading and is
// immune to wall-clock adjustments.
type MonotonicClock struct{}

// Now returns the current system time.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually driven Clock for deterministic tests and
// simulations. It is not safe for concurrent use.
type MockClock struct {
	current time.Time
}

// NewMockClock returns a MockClock set to t, or to a fixed epoch when t is zero.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock time.
func (m *MockClock) Now() time.Time {
	return m.current
}

// Advance moves the clock forward by d. Panics if d is negative.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}

// AdvanceSeconds moves the clock forward by a fractional number of seconds,
// the unit the filter's dt is expressed in.
func (m *MockClock) AdvanceSeconds(s float64) {
	m.Advance(time.Duration(s * float64(time.Second)))
}

// Package clock provides a time source that tests can pin.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed creates a Fixed clock set to t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

// Now returns the pinned time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t.UTC()
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

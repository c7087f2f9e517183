// Package testfixtures provides deterministic stand-ins for the injectable
// seams (clock, id generation, durable queue) used across service tests.
package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock. Its Now method is injected wherever a
// component takes a now func.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock creates a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start}
}

// Now returns the current fixed time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Set pins the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

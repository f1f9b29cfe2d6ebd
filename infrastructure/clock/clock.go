// Package clock provides the wall-clock sources behind the time import.
// Production code injects Real(); tests inject Fake() and move it by hand.
package clock

import (
	"sync"
	"time"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

var (
	_ ports.Clock = realClock{}
	_ ports.Clock = (*FakeClock)(nil)
)

type realClock struct{}

// Real returns a Clock backed by time.Now.
func Real() ports.Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

// FakeClock is a manually controlled clock. Safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

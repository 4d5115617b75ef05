// Package testutil provides shared helpers for tests: a discard logger,
// a fixed clock and a fake training backend.
package testutil

import (
	"log/slog"
	"sync"
	"time"
)

// DiscardLogger returns a slog.Logger that discards all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Clock is a deterministic time source. Each call to Now advances it by
// Step so appended messages get strictly increasing timestamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock creates a clock starting at start, advancing one second per read.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start, Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}

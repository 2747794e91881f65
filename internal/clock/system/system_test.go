// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock reports UTC times that move forward.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	c := New()
	first := c.Now()
	if first.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", first.Location())
	}
	second := c.Now()
	if second.Before(first) {
		t.Fatalf("expected monotonic times, got %v then %v", first, second)
	}
}

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiterBoundary(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute, WithClock(clock.now))

	for i := 0; i < 5; i++ {
		d := l.Admit("caller-a")
		if !d.Allowed {
			t.Fatalf("admission %d: expected allowed", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Errorf("admission %d: remaining = %d, want %d", i+1, d.Remaining, 5-(i+1))
		}
	}

	d := l.Admit("caller-a")
	if d.Allowed {
		t.Error("6th admission: expected denied")
	}
	if d.Remaining != 0 {
		t.Errorf("6th admission: remaining = %d, want 0", d.Remaining)
	}

	// Denial must not extend the window.
	resetAt := d.ResetAt
	clock.advance(30 * time.Second)
	d = l.Admit("caller-a")
	if d.Allowed {
		t.Error("admission within window after denial: expected denied")
	}
	if !d.ResetAt.Equal(resetAt) {
		t.Errorf("resetAt moved from %v to %v", resetAt, d.ResetAt)
	}

	// After the window passes, the counter resets.
	clock.advance(31 * time.Second)
	d = l.Admit("caller-a")
	if !d.Allowed {
		t.Fatal("admission after reset: expected allowed")
	}
	if d.Remaining != 4 {
		t.Errorf("admission after reset: remaining = %d, want 4", d.Remaining)
	}
}

func TestLimiterIsolatesKeys(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Minute, WithClock(clock.now))

	if d := l.Admit("caller-a"); !d.Allowed {
		t.Fatal("caller-a first admission: expected allowed")
	}
	if d := l.Admit("caller-a"); d.Allowed {
		t.Error("caller-a second admission: expected denied")
	}
	if d := l.Admit("caller-b"); !d.Allowed {
		t.Error("caller-b must not be affected by caller-a's bucket")
	}
}

func TestLimiterResetAt(t *testing.T) {
	clock := newFakeClock()
	l := New(3, time.Minute, WithClock(clock.now))

	d := l.Admit("caller-a")
	want := clock.t.Add(time.Minute)
	if !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, want)
	}

	// Subsequent admissions in the same window keep the same boundary.
	clock.advance(10 * time.Second)
	d = l.Admit("caller-a")
	if !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want unchanged %v", d.ResetAt, want)
	}
}

func TestLimiterSweepReclaimsStaleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := New(10, time.Minute, WithClock(clock.now), WithSweepThreshold(50))

	for i := 0; i < 60; i++ {
		l.Admit(fmt.Sprintf("caller-%d", i))
	}
	if got := l.Len(); got != 60 {
		t.Fatalf("bucket count = %d, want 60", got)
	}

	// All buckets expire; the next admission over the threshold sweeps them.
	clock.advance(2 * time.Minute)
	l.Admit("fresh-caller")

	if got := l.Len(); got != 1 {
		t.Errorf("bucket count after sweep = %d, want 1", got)
	}
}

func TestLimiterNoSweepBelowThreshold(t *testing.T) {
	clock := newFakeClock()
	l := New(10, time.Minute, WithClock(clock.now), WithSweepThreshold(50))

	for i := 0; i < 10; i++ {
		l.Admit(fmt.Sprintf("caller-%d", i))
	}
	clock.advance(2 * time.Minute)
	l.Admit("fresh-caller")

	// Stale buckets remain because the map never crossed the threshold.
	if got := l.Len(); got != 11 {
		t.Errorf("bucket count = %d, want 11", got)
	}
}

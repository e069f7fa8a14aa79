// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package ratelimit provides per-key fixed-window admission control.
//
// The limiter approximates a sliding window with fixed windows: counts reset
// at window boundaries, which permits up to a 2x burst across a boundary.
// That is acceptable for abuse mitigation, which is the limiter's purpose;
// it is not a billing-grade accounting primitive.
//
// Denial is not an error. Admit always returns a Decision, and callers
// translate a denied Decision into a 429 response carrying ResetAt.
package ratelimit

import (
	"sync"
	"time"

	"github.com/bookscout-dev/bookscout/internal/metrics"
)

// DefaultSweepThreshold is the bucket-map size above which each admission
// sweeps expired buckets. Reclamation is opportunistic only; there is no
// background timer.
const DefaultSweepThreshold = 1000

// Decision is the result of one admission attempt.
type Decision struct {
	// Allowed reports whether the request is admitted.
	Allowed bool

	// Limit is the configured maximum for the window.
	Limit int

	// Remaining is the number of admissions left in the current window.
	Remaining int

	// ResetAt is when the current window ends and the counter resets.
	ResetAt time.Time
}

// bucket tracks one caller key's current window.
type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window rate limiter keyed by caller.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	maxRequests    int
	window         time.Duration
	sweepThreshold int

	// now is injectable for deterministic tests.
	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepThreshold overrides the bucket-map size that triggers sweeping.
func WithSweepThreshold(n int) Option {
	return func(l *Limiter) { l.sweepThreshold = n }
}

// New creates a fixed-window limiter admitting maxRequests per window.
func New(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:        make(map[string]*bucket),
		maxRequests:    maxRequests,
		window:         window,
		sweepThreshold: DefaultSweepThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit attempts to admit one request for callerKey.
//
// The first admission for a key, or the first after the window elapses,
// resets the counter to 1. Further admissions increment the counter until
// it reaches the limit; admissions beyond the limit are denied without
// incrementing, so a denied caller's window does not extend itself.
func (l *Limiter) Admit(callerKey string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > l.sweepThreshold {
		l.sweep(now)
	}

	b, ok := l.buckets[callerKey]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[callerKey] = b
		return Decision{
			Allowed:   true,
			Limit:     l.maxRequests,
			Remaining: l.maxRequests - 1,
			ResetAt:   b.resetAt,
		}
	}

	if b.count >= l.maxRequests {
		return Decision{
			Allowed:   false,
			Limit:     l.maxRequests,
			Remaining: 0,
			ResetAt:   b.resetAt,
		}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Limit:     l.maxRequests,
		Remaining: l.maxRequests - b.count,
		ResetAt:   b.resetAt,
	}
}

// sweep deletes buckets whose window has passed. Caller holds l.mu.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
		}
	}
	metrics.RateLimitBuckets.Set(float64(len(l.buckets)))
}

// Len returns the current number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

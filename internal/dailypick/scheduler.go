// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package dailypick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/metrics"
)

// Action is the outcome of one trigger run.
type Action string

const (
	// ActionAlreadyExists means today's pick was already recorded; the
	// trigger is safe to fire any number of times per day.
	ActionAlreadyExists Action = "already_exists"
	// ActionPicked means a new record was created.
	ActionPicked Action = "picked_new_book"
	// ActionNoBooks means the curated pool is empty. Nothing is mutated;
	// this is an operator-facing configuration problem.
	ActionNoBooks Action = "no_books_available"
)

// DefaultWindowCap bounds the rotation window.
const DefaultWindowCap = 300

// RunResult reports what one trigger run did.
type RunResult struct {
	Action     Action `json:"action"`
	Date       string `json:"date"`
	ItemRef    string `json:"itemRef,omitempty"`
	WindowSize int    `json:"windowSize"`
}

// Scheduler selects one curated book per UTC day.
type Scheduler struct {
	store     *Store
	pool      Pool
	windowCap int
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// SchedulerOption mutates a Scheduler during construction.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithWindowCap overrides the rotation window bound.
func WithWindowCap(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.windowCap = n
		}
	}
}

// NewScheduler builds a scheduler over store and pool, seeding selection
// randomness from seed so runs are reproducible under test.
func NewScheduler(store *Store, pool Pool, seed int64, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:     store,
		pool:      pool,
		windowCap: DefaultWindowCap,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one trigger: a no-op when today's record exists, otherwise a
// uniform random selection from the curated pool minus the rotation window.
// When the window has consumed the whole pool the full pool becomes
// available again for this pick, which intentionally permits an immediate
// repeat.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	date := s.now().UTC().Format(DateLayout)
	log := logging.Ctx(ctx)

	if existing, ok, err := s.store.Get(ctx, date); err != nil {
		return nil, err
	} else if ok {
		size, err := s.store.Count(ctx)
		if err != nil {
			return nil, err
		}
		metrics.DailyPickRuns.WithLabelValues(string(ActionAlreadyExists)).Inc()
		return &RunResult{Action: ActionAlreadyExists, Date: date, ItemRef: existing.ItemRef, WindowSize: size}, nil
	}

	pool, err := s.pool.Books(ctx)
	if err != nil {
		return nil, fmt.Errorf("load curated pool: %w", err)
	}
	if len(pool) == 0 {
		log.Warn().Msg("curated pool is empty, no daily pick possible")
		metrics.DailyPickRuns.WithLabelValues(string(ActionNoBooks)).Inc()
		return &RunResult{Action: ActionNoBooks, Date: date}, nil
	}

	window, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	recentlyUsed := make(map[string]struct{}, len(window))
	for _, record := range window {
		recentlyUsed[record.ItemRef] = struct{}{}
	}

	available := make([]catalog.NormalizedBook, 0, len(pool))
	for _, book := range pool {
		if _, used := recentlyUsed[book.ID]; !used {
			available = append(available, book)
		}
	}
	if len(available) == 0 {
		// The window exhausted the pool; every candidate becomes
		// available again for this pick only.
		log.Info().Int("pool_size", len(pool)).Msg("curated pool exhausted, resetting rotation")
		available = pool
	}

	pick := available[s.intn(len(available))]
	record := snapshot(pick, date, s.now().UTC())

	if err := s.store.Insert(ctx, record, s.windowCap); err != nil {
		if errors.Is(err, ErrAlreadyPicked) {
			// A concurrent trigger won the date key.
			size, countErr := s.store.Count(ctx)
			if countErr != nil {
				return nil, countErr
			}
			metrics.DailyPickRuns.WithLabelValues(string(ActionAlreadyExists)).Inc()
			return &RunResult{Action: ActionAlreadyExists, Date: date, WindowSize: size}, nil
		}
		return nil, err
	}

	size, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	metrics.DailyPickRuns.WithLabelValues(string(ActionPicked)).Inc()
	metrics.DailyPickWindowSize.Set(float64(size))
	log.Info().
		Str("date", date).
		Str("item_ref", pick.ID).
		Str("title", pick.Title).
		Int("window_size", size).
		Msg("daily pick selected")
	return &RunResult{Action: ActionPicked, Date: date, ItemRef: pick.ID, WindowSize: size}, nil
}

// Today returns the current UTC day's record, if one exists.
func (s *Scheduler) Today(ctx context.Context) (Record, bool, error) {
	return s.store.Get(ctx, s.now().UTC().Format(DateLayout))
}

func (s *Scheduler) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

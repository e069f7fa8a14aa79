// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package search implements the request pipeline that turns a caller query
// into a normalized result set: cache check, primary catalog fetch, fallback
// catalog fetch, merge, cache write. Prompt-driven queries are first resolved
// into concrete titles by the external title suggester and fanned out with
// bounded concurrency.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookscout-dev/bookscout/internal/cache"
	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/generator"
	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/metrics"
	"github.com/bookscout-dev/bookscout/internal/trending"
)

// Mode selects how the query text is interpreted.
type Mode string

const (
	// ModeDirect searches the query text as-is.
	ModeDirect Mode = "direct"
	// ModePromptDriven resolves the query into concrete titles first.
	ModePromptDriven Mode = "promptDriven"
)

// Origin reports where a result set came from.
type Origin string

const (
	OriginCache    Origin = "cache"
	OriginPrimary  Origin = "primaryCatalog"
	OriginFallback Origin = "fallbackCatalog"
)

const (
	// DefaultMaxResults applies when the caller does not set a page size.
	DefaultMaxResults = 20
	// MaxResultsCeiling is the largest page a single request may ask for.
	MaxResultsCeiling = 50

	// promptTitleCap bounds how many suggested titles one prompt may fan
	// out into.
	promptTitleCap = 5

	cacheKeyPrefix = "search"
)

// Request describes one search invocation.
type Request struct {
	Query      string
	Mode       Mode
	UserID     string
	MaxResults int
	StartIndex int
	UseCache   bool
	// Refresh skips the cache read but still writes the fresh result back.
	Refresh bool
}

// Result is the orchestrator's answer to a Request.
type Result struct {
	Books        []catalog.NormalizedBook `json:"books"`
	TotalResults int                      `json:"totalResults"`
	SearchTimeMs int64                    `json:"searchTimeMs"`
	Origin       Origin                   `json:"resultOrigin"`
}

// Orchestrator coordinates the catalog adapters, cache gateway, title
// suggester, and trending tracker for a single logical search.
type Orchestrator struct {
	primary   catalog.Adapter
	fallback  catalog.Adapter
	gateway   *cache.Gateway
	suggester generator.TitleSuggester
	tracker   trending.Tracker
	fanOut    int
	now       func() time.Time
}

// Option mutates an Orchestrator during construction.
type Option func(*Orchestrator)

// WithSuggester installs the title suggester used by prompt-driven requests.
func WithSuggester(s generator.TitleSuggester) Option {
	return func(o *Orchestrator) { o.suggester = s }
}

// WithTracker installs the trending tracker fed by direct searches.
func WithTracker(t trending.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithFanOut bounds concurrent per-title catalog calls.
func WithFanOut(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.fanOut = n
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires a primary adapter, an optional fallback adapter, and
// a cache gateway. The fallback may be nil; fallback steps are then skipped.
func NewOrchestrator(primary, fallback catalog.Adapter, gateway *cache.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary:  primary,
		fallback: fallback,
		gateway:  gateway,
		fanOut:   4,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search runs the cache-check / primary-fetch / fallback-fetch / merge
// pipeline and returns the paginated result.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Result, error) {
	start := o.now()
	req = withDefaults(req)
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	key := o.cacheKey(req)
	if req.UseCache && !req.Refresh {
		if cached := o.readCached(ctx, key); cached != nil {
			cached.Origin = OriginCache
			cached.SearchTimeMs = o.now().Sub(start).Milliseconds()
			return cached, nil
		}
	}

	var (
		books  []catalog.NormalizedBook
		origin Origin
		err    error
	)
	switch req.Mode {
	case ModePromptDriven:
		books, origin, err = o.fetchPromptDriven(ctx, req)
	default:
		books, origin, err = o.fetchWithFallback(ctx, req.Query, fetchCount(req))
	}
	if err != nil {
		return nil, err
	}

	// Only searches that actually succeeded count toward trending.
	o.recordTerm(ctx, req)

	books = catalog.Dedupe(books)
	result := &Result{
		Books:        paginate(books, req.StartIndex, req.MaxResults),
		TotalResults: len(books),
		Origin:       origin,
	}

	if req.UseCache {
		o.writeCached(ctx, key, result)
	}
	result.SearchTimeMs = o.now().Sub(start).Milliseconds()
	return result, nil
}

// Lookup fetches one book by id, trying the primary catalog first and the
// fallback when the primary is unavailable or does not know the id.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (*catalog.NormalizedBook, error) {
	book, err := o.primary.GetByID(ctx, id)
	if err == nil {
		return book, nil
	}
	if o.fallback == nil {
		return nil, err
	}
	if errors.Is(err, catalog.ErrProviderUnavailable) || errors.Is(err, catalog.ErrNotFound) {
		return o.fallback.GetByID(ctx, id)
	}
	return nil, err
}

// fetchWithFallback implements the PrimaryFetch and FallbackFetch states.
// The fallback runs only when the primary signals unavailability or returns
// zero results; a nonzero primary result is final regardless of quality.
func (o *Orchestrator) fetchWithFallback(ctx context.Context, query string, count int) ([]catalog.NormalizedBook, Origin, error) {
	books, primaryErr := o.primary.Search(ctx, query, count)
	if primaryErr == nil && len(books) > 0 {
		return books, OriginPrimary, nil
	}
	if primaryErr != nil && !errors.Is(primaryErr, catalog.ErrProviderUnavailable) {
		return nil, "", primaryErr
	}
	if o.fallback == nil {
		if primaryErr != nil {
			return nil, "", primaryErr
		}
		return books, OriginPrimary, nil
	}

	metrics.SearchFallbacks.Inc()
	logging.Ctx(ctx).Debug().
		Str("query", query).
		Str("primary", string(o.primary.Name())).
		Bool("primary_failed", primaryErr != nil).
		Msg("falling back to secondary catalog")

	fbBooks, fbErr := o.fallback.Search(ctx, query, count)
	if fbErr != nil {
		if primaryErr != nil {
			return nil, "", fmt.Errorf("both catalogs failed: %w", primaryErr)
		}
		// primary succeeded with zero results; an unavailable fallback
		// does not turn that into an error
		return books, OriginPrimary, nil
	}
	return fbBooks, OriginFallback, nil
}

// fetchPromptDriven resolves the query into titles and searches each title
// independently with bounded concurrency. Individual title failures are
// dropped; only a suggester failure fails the request.
func (o *Orchestrator) fetchPromptDriven(ctx context.Context, req Request) ([]catalog.NormalizedBook, Origin, error) {
	if o.suggester == nil {
		return nil, "", fmt.Errorf("search: prompt-driven mode requires a title suggester")
	}
	titles, err := o.suggester.SuggestTitles(ctx, req.Query, promptTitleCap)
	if err != nil {
		return nil, "", fmt.Errorf("%w: title suggestion failed: %v", catalog.ErrProviderUnavailable, err)
	}
	if len(titles) == 0 {
		return nil, OriginPrimary, nil
	}

	perTitle := make([][]catalog.NormalizedBook, len(titles))
	var (
		mu         sync.Mutex
		anyPrimary bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanOut)
	for i, title := range titles {
		g.Go(func() error {
			books, origin, err := o.fetchWithFallback(gctx, title, fetchCount(req))
			if err != nil {
				logging.Ctx(ctx).Debug().
					Str("title", title).
					Err(err).
					Msg("dropping unresolvable suggested title")
				return nil
			}
			perTitle[i] = books
			if origin == OriginPrimary {
				mu.Lock()
				anyPrimary = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	var merged []catalog.NormalizedBook
	for _, books := range perTitle {
		merged = append(merged, books...)
	}
	origin := OriginFallback
	if anyPrimary || len(merged) == 0 {
		origin = OriginPrimary
	}
	return merged, origin, nil
}

func (o *Orchestrator) cacheKey(req Request) string {
	return cache.Key(cacheKeyPrefix, map[string]any{
		"mode":       string(req.Mode),
		"query":      strings.ToLower(strings.TrimSpace(req.Query)),
		"startIndex": req.StartIndex,
		"maxResults": req.MaxResults,
	})
}

func (o *Orchestrator) readCached(ctx context.Context, key string) *Result {
	var result Result
	if !o.gateway.Get(ctx, key, cache.ClassSearch, &result) {
		return nil
	}
	return &result
}

func (o *Orchestrator) writeCached(ctx context.Context, key string, result *Result) {
	o.gateway.Set(ctx, key, cache.ClassSearch, result)
}

// recordTerm feeds direct queries into the trending tracker. Tracking is
// advisory; failures are logged and ignored.
func (o *Orchestrator) recordTerm(ctx context.Context, req Request) {
	if o.tracker == nil || req.Mode != ModeDirect {
		return
	}
	if err := o.tracker.Record(ctx, req.Query); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to record trending term")
	}
}

func withDefaults(req Request) Request {
	if req.Mode == "" {
		req.Mode = ModeDirect
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.MaxResults > MaxResultsCeiling {
		req.MaxResults = MaxResultsCeiling
	}
	if req.StartIndex < 0 {
		req.StartIndex = 0
	}
	return req
}

// fetchCount asks providers for enough records to cover the requested page
// after merge-side pagination.
func fetchCount(req Request) int {
	return req.StartIndex + req.MaxResults
}

// paginate slices the merged set. Page boundaries are applied here, after
// merge and dedup, so they stay stable when fallback spans two providers.
func paginate(books []catalog.NormalizedBook, start, count int) []catalog.NormalizedBook {
	if start >= len(books) {
		return []catalog.NormalizedBook{}
	}
	end := start + count
	if end > len(books) {
		end = len(books)
	}
	return books[start:end]
}

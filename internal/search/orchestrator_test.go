// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookscout-dev/bookscout/internal/cache"
	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/generator"
	"github.com/bookscout-dev/bookscout/internal/trending"
)

// fakeAdapter serves canned results and records how it was called.
type fakeAdapter struct {
	name        catalog.Source
	books       map[string][]catalog.NormalizedBook
	byID        map[string]catalog.NormalizedBook
	err         error
	searchCalls atomic.Int64
}

func (f *fakeAdapter) Name() catalog.Source { return f.name }

// Search runs concurrently under prompt-driven fan-out, so the call
// counter must be atomic.
func (f *fakeAdapter) Search(_ context.Context, query string, _ int) ([]catalog.NormalizedBook, error) {
	f.searchCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.books[query], nil
}

func (f *fakeAdapter) GetByID(_ context.Context, id string) (*catalog.NormalizedBook, error) {
	if f.err != nil {
		return nil, f.err
	}
	book, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &book, nil
}

func book(id, title string) catalog.NormalizedBook {
	return catalog.NormalizedBook{
		ID:      id,
		Title:   title,
		Authors: []string{"Author " + id},
		Source:  catalog.SourceGoogleBooks,
	}
}

func newTestGateway() *cache.Gateway {
	return cache.NewGateway(cache.NewMemoryStore(), time.Minute, time.Hour, zerolog.Nop())
}

func TestSearchPrimarySuccess(t *testing.T) {
	primary := &fakeAdapter{
		name:  catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{"dune": {book("g1", "Dune")}},
	}
	fallback := &fakeAdapter{name: catalog.SourceOpenLibrary}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	result, err := o.Search(context.Background(), Request{Query: "dune", UseCache: false})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Origin != OriginPrimary {
		t.Errorf("expected origin %s, got %s", OriginPrimary, result.Origin)
	}
	if len(result.Books) != 1 || result.Books[0].ID != "g1" {
		t.Errorf("unexpected books: %+v", result.Books)
	}
	if fallback.searchCalls.Load() != 0 {
		t.Errorf("fallback should not run on primary success, ran %d times", fallback.searchCalls.Load())
	}
}

func TestSearchFallbackOnProviderUnavailable(t *testing.T) {
	primary := &fakeAdapter{
		name: catalog.SourceGoogleBooks,
		err:  fmt.Errorf("%w: quota exceeded", catalog.ErrProviderUnavailable),
	}
	fallback := &fakeAdapter{
		name:  catalog.SourceOpenLibrary,
		books: map[string][]catalog.NormalizedBook{"dune": {book("ol1", "Dune")}},
	}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	result, err := o.Search(context.Background(), Request{Query: "dune", UseCache: false})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Origin != OriginFallback {
		t.Errorf("expected origin %s, got %s", OriginFallback, result.Origin)
	}
	if len(result.Books) != 1 || result.Books[0].ID != "ol1" {
		t.Errorf("unexpected books: %+v", result.Books)
	}
}

func TestSearchFallbackOnEmptyPrimary(t *testing.T) {
	primary := &fakeAdapter{name: catalog.SourceGoogleBooks}
	fallback := &fakeAdapter{
		name:  catalog.SourceOpenLibrary,
		books: map[string][]catalog.NormalizedBook{"obscure": {book("ol2", "Obscure")}},
	}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	result, err := o.Search(context.Background(), Request{Query: "obscure", UseCache: false})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Origin != OriginFallback {
		t.Errorf("expected origin %s, got %s", OriginFallback, result.Origin)
	}
}

func TestSearchBothCatalogsFail(t *testing.T) {
	primary := &fakeAdapter{name: catalog.SourceGoogleBooks, err: catalog.ErrProviderUnavailable}
	fallback := &fakeAdapter{name: catalog.SourceOpenLibrary, err: catalog.ErrProviderUnavailable}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	_, err := o.Search(context.Background(), Request{Query: "dune", UseCache: false})
	if !errors.Is(err, catalog.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSearchEmptyPrimaryWithFailedFallbackIsNotAnError(t *testing.T) {
	primary := &fakeAdapter{name: catalog.SourceGoogleBooks}
	fallback := &fakeAdapter{name: catalog.SourceOpenLibrary, err: catalog.ErrProviderUnavailable}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	result, err := o.Search(context.Background(), Request{Query: "nothing", UseCache: false})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Books) != 0 || result.Origin != OriginPrimary {
		t.Errorf("expected empty primary result, got %+v", result)
	}
}

func TestSearchCacheTransparency(t *testing.T) {
	primary := &fakeAdapter{
		name:  catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{"dune": {book("g1", "Dune"), book("g2", "Dune Messiah")}},
	}
	o := NewOrchestrator(primary, nil, newTestGateway())
	ctx := context.Background()

	first, err := o.Search(ctx, Request{Query: "dune", UseCache: true})
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if first.Origin != OriginPrimary {
		t.Fatalf("expected primary origin, got %s", first.Origin)
	}

	second, err := o.Search(ctx, Request{Query: "dune", UseCache: true})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if second.Origin != OriginCache {
		t.Errorf("expected cache origin, got %s", second.Origin)
	}
	if primary.searchCalls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", primary.searchCalls.Load())
	}
	if len(second.Books) != len(first.Books) {
		t.Fatalf("cached set size %d != original %d", len(second.Books), len(first.Books))
	}
	for i := range first.Books {
		if second.Books[i].ID != first.Books[i].ID || second.Books[i].Title != first.Books[i].Title {
			t.Errorf("cached book %d differs: %+v vs %+v", i, second.Books[i], first.Books[i])
		}
	}
}

func TestSearchRefreshBypassesCacheRead(t *testing.T) {
	primary := &fakeAdapter{
		name:  catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{"dune": {book("g1", "Dune")}},
	}
	o := NewOrchestrator(primary, nil, newTestGateway())
	ctx := context.Background()

	if _, err := o.Search(ctx, Request{Query: "dune", UseCache: true}); err != nil {
		t.Fatalf("seed search: %v", err)
	}
	result, err := o.Search(ctx, Request{Query: "dune", UseCache: true, Refresh: true})
	if err != nil {
		t.Fatalf("refresh search: %v", err)
	}
	if result.Origin != OriginPrimary {
		t.Errorf("refresh should hit upstream, got origin %s", result.Origin)
	}
	if primary.searchCalls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", primary.searchCalls.Load())
	}
}

func TestSearchPromptDrivenFanOut(t *testing.T) {
	primary := &fakeAdapter{
		name: catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{
			"Dune":     {book("g1", "Dune")},
			"Hyperion": {book("g2", "Hyperion"), book("g1", "Dune")},
		},
	}
	suggester := &generator.StaticSuggester{Titles: []string{"Dune", "Hyperion", "Unresolvable"}}
	o := NewOrchestrator(primary, nil, newTestGateway(), WithSuggester(suggester))

	result, err := o.Search(context.Background(), Request{
		Query:    "space epics with sandworms",
		Mode:     ModePromptDriven,
		UseCache: false,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Books) != 2 {
		t.Fatalf("expected 2 deduped books, got %d: %+v", len(result.Books), result.Books)
	}
	if result.Books[0].ID != "g1" || result.Books[1].ID != "g2" {
		t.Errorf("unexpected merge order: %+v", result.Books)
	}
}

func TestSearchPromptDrivenSuggesterFailure(t *testing.T) {
	primary := &fakeAdapter{name: catalog.SourceGoogleBooks}
	suggester := &generator.StaticSuggester{Err: errors.New("generator down")}
	o := NewOrchestrator(primary, nil, newTestGateway(), WithSuggester(suggester))

	_, err := o.Search(context.Background(), Request{
		Query:    "anything",
		Mode:     ModePromptDriven,
		UseCache: false,
	})
	if !errors.Is(err, catalog.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSearchPagination(t *testing.T) {
	books := make([]catalog.NormalizedBook, 0, 8)
	for i := 0; i < 8; i++ {
		books = append(books, book(fmt.Sprintf("g%d", i), fmt.Sprintf("Book %d", i)))
	}
	primary := &fakeAdapter{
		name:  catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{"series": books},
	}
	o := NewOrchestrator(primary, nil, newTestGateway())

	result, err := o.Search(context.Background(), Request{
		Query:      "series",
		StartIndex: 5,
		MaxResults: 5,
		UseCache:   false,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.TotalResults != 8 {
		t.Errorf("expected total 8, got %d", result.TotalResults)
	}
	if len(result.Books) != 3 {
		t.Fatalf("expected 3 books on final page, got %d", len(result.Books))
	}
	if result.Books[0].ID != "g5" {
		t.Errorf("page starts at %s, want g5", result.Books[0].ID)
	}
}

func TestSearchRecordsTrendingOnlyOnSuccess(t *testing.T) {
	tracker := trending.NewMemoryTracker()
	primary := &fakeAdapter{
		name:  catalog.SourceGoogleBooks,
		books: map[string][]catalog.NormalizedBook{"dune": {book("g1", "Dune")}},
		err:   fmt.Errorf("%w: quota exceeded", catalog.ErrProviderUnavailable),
	}
	o := NewOrchestrator(primary, nil, newTestGateway(), WithTracker(tracker))
	ctx := context.Background()

	if _, err := o.Search(ctx, Request{Query: "dune", UseCache: false}); err == nil {
		t.Fatal("expected failing search")
	}
	if terms, _ := tracker.Top(ctx, 10); len(terms) != 0 {
		t.Errorf("failed search must not record trending terms, got %+v", terms)
	}

	primary.err = nil
	if _, err := o.Search(ctx, Request{Query: "dune", UseCache: false}); err != nil {
		t.Fatalf("search: %v", err)
	}
	terms, err := tracker.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(terms) != 1 || terms[0].Term != "dune" || terms[0].Count != 1 {
		t.Errorf("expected one recording of dune, got %+v", terms)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	o := NewOrchestrator(&fakeAdapter{name: catalog.SourceGoogleBooks}, nil, newTestGateway())
	if _, err := o.Search(context.Background(), Request{Query: "   "}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestLookupFallsBackOnNotFound(t *testing.T) {
	primary := &fakeAdapter{name: catalog.SourceGoogleBooks, byID: map[string]catalog.NormalizedBook{}}
	fallback := &fakeAdapter{
		name: catalog.SourceOpenLibrary,
		byID: map[string]catalog.NormalizedBook{"OL1W": book("OL1W", "Dune")},
	}
	o := NewOrchestrator(primary, fallback, newTestGateway())

	found, err := o.Lookup(context.Background(), "OL1W")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != "OL1W" {
		t.Errorf("unexpected book: %+v", found)
	}
}

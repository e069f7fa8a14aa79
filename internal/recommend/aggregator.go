// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookscout-dev/bookscout/internal/cache"
	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/generator"
	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/metrics"
	"github.com/bookscout-dev/bookscout/internal/search"
	"github.com/bookscout-dev/bookscout/internal/trending"
)

// Searcher is the slice of the search orchestrator the aggregator uses.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
	Lookup(ctx context.Context, id string) (*catalog.NormalizedBook, error)
}

// Config tunes the aggregator's section sizes and concurrency.
type Config struct {
	// MaxRecommendations caps the total books across all home sections.
	MaxRecommendations int
	// FavoritesCap bounds the favorites section.
	FavoritesCap int
	// MinSectionBooks is the threshold below which the trending fallback
	// section is built.
	MinSectionBooks int
	// FanOut bounds concurrent per-title catalog calls.
	FanOut int
	// TrendingTerms is how many recent terms the fallback section searches.
	TrendingTerms int
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecommendations: 20,
		FavoritesCap:       10,
		MinSectionBooks:    5,
		FanOut:             4,
		TrendingTerms:      5,
	}
}

const (
	sectionCachePrefix = "recsection"

	// perTermResults is how many books each trending term contributes.
	perTermResults = 3

	// relatedSectionSize bounds same-author and same-genre sections.
	relatedSectionSize = 6
)

// Aggregator builds the home and book-detail recommendation responses.
type Aggregator struct {
	searcher  Searcher
	suggester generator.TitleSuggester
	favorites FavoritesSource
	tracker   trending.Tracker
	gateway   *cache.Gateway
	cfg       Config
	now       func() time.Time
}

// NewAggregator wires the aggregator's collaborators. suggester, favorites,
// and tracker may be nil; the dependent sections are then omitted.
func NewAggregator(searcher Searcher, gateway *cache.Gateway, cfg Config, suggester generator.TitleSuggester, favorites FavoritesSource, tracker trending.Tracker) *Aggregator {
	if cfg.MaxRecommendations <= 0 {
		cfg = DefaultConfig()
	}
	return &Aggregator{
		searcher:  searcher,
		suggester: suggester,
		favorites: favorites,
		tracker:   tracker,
		gateway:   gateway,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Home composes the favorites, model-driven, and trending sections. Any
// section's failure yields an omitted section, never a failed aggregate.
func (a *Aggregator) Home(ctx context.Context, req HomeRequest) (*HomeResult, error) {
	if req.MaxRecommendations <= 0 || req.MaxRecommendations > a.cfg.MaxRecommendations {
		req.MaxRecommendations = a.cfg.MaxRecommendations
	}

	// seen is the sole dedup authority: later sections never reintroduce
	// a book an earlier section already selected.
	seen := make(map[string]struct{})
	result := &HomeResult{Sections: []Section{}}

	var callerFavorites []Favorite
	if req.IncludeFavorites && a.favorites != nil {
		start := a.now()
		favs, err := a.favorites.FavoritesFor(ctx, req.UserID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", req.UserID).Msg("omitting favorites section")
			metrics.SectionOmissions.WithLabelValues(string(SectionFavorites)).Inc()
		} else {
			callerFavorites = favs
			if section := a.buildFavoritesSection(favs, seen, start); section != nil {
				result.Sections = append(result.Sections, *section)
			}
		}
	}

	if a.suggester != nil {
		start := a.now()
		books, cached, err := a.modelDrivenBooks(ctx, req, callerFavorites)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("omitting model-driven section")
			metrics.SectionOmissions.WithLabelValues(string(SectionModelDriven)).Inc()
		} else if section := a.finishSection("Picked For You", SectionModelDriven, books, seen, cached, start); section != nil {
			result.Sections = append(result.Sections, *section)
		}
	}

	if a.tracker != nil && countBooks(result.Sections) < a.cfg.MinSectionBooks {
		start := a.now()
		books, cached, err := a.trendingBooks(ctx, req.Refresh)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("omitting trending section")
			metrics.SectionOmissions.WithLabelValues(string(SectionTrending)).Inc()
		} else if section := a.finishSection("Trending Now", SectionTrending, books, seen, cached, start); section != nil {
			result.Sections = append(result.Sections, *section)
		}
	}

	capTotal(result.Sections, req.MaxRecommendations)
	result.Sections = dropEmpty(result.Sections)
	result.TotalBooks = countBooks(result.Sections)
	result.Cached = allCached(result.Sections)
	return result, nil
}

// BookDetail composes related-book sections for one book. The current book
// itself is excluded from sections when the caller asks for that.
func (a *Aggregator) BookDetail(ctx context.Context, req BookDetailRequest) (*BookDetailResult, error) {
	book, err := a.searcher.Lookup(ctx, req.BookID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	if req.ExcludeCurrentBook {
		seen[book.ID] = struct{}{}
	}
	result := &BookDetailResult{Book: book, Sections: []Section{}}

	if req.IncludeAuthorBooks {
		if author := book.PrimaryAuthor(); author != catalog.UnknownAuthor {
			start := a.now()
			title := fmt.Sprintf("More by %s", author)
			query := fmt.Sprintf("author:%q", author)
			books, cached, err := a.relatedBooks(ctx, SectionSameAuthor, book.ID, query, req.Refresh)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("book_id", book.ID).Msg("omitting same-author section")
				metrics.SectionOmissions.WithLabelValues(string(SectionSameAuthor)).Inc()
			} else if section := a.finishSection(title, SectionSameAuthor, books, seen, cached, start); section != nil {
				result.Sections = append(result.Sections, *section)
			}
		}
	}

	if req.IncludeGenreBooks && len(book.Categories) > 0 {
		start := a.now()
		genre := book.Categories[0]
		title := fmt.Sprintf("More in %s", genre)
		query := fmt.Sprintf("subject:%q", genre)
		books, cached, err := a.relatedBooks(ctx, SectionSameGenre, book.ID, query, req.Refresh)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("book_id", book.ID).Msg("omitting same-genre section")
			metrics.SectionOmissions.WithLabelValues(string(SectionSameGenre)).Inc()
		} else if section := a.finishSection(title, SectionSameGenre, books, seen, cached, start); section != nil {
			result.Sections = append(result.Sections, *section)
		}
	}

	result.TotalBooks = countBooks(result.Sections)
	return result, nil
}

// buildFavoritesSection is a pure transform of stored favorites. It never
// performs network I/O.
func (a *Aggregator) buildFavoritesSection(favs []Favorite, seen map[string]struct{}, start time.Time) *Section {
	if len(favs) > a.cfg.FavoritesCap {
		favs = favs[:a.cfg.FavoritesCap]
	}
	books := make([]catalog.NormalizedBook, 0, len(favs))
	for _, fav := range favs {
		books = append(books, fav.ToNormalized())
	}
	return a.finishSection("Your Favorites", SectionFavorites, books, seen, false, start)
}

// modelDrivenBooks resolves generator candidates into books, one search per
// candidate, first hit kept, unresolvable candidates silently dropped.
func (a *Aggregator) modelDrivenBooks(ctx context.Context, req HomeRequest, favs []Favorite) ([]catalog.NormalizedBook, bool, error) {
	key := cache.Key(sectionCachePrefix, map[string]any{
		"type": string(SectionModelDriven),
		"user": req.UserID,
	})
	if !req.Refresh {
		var cached []catalog.NormalizedBook
		if a.gateway.Get(ctx, key, cache.ClassSection, &cached) {
			return cached, true, nil
		}
	}

	titles, err := a.suggester.SuggestTitles(ctx, a.buildPrompt(favs), a.cfg.MaxRecommendations)
	if err != nil {
		return nil, false, fmt.Errorf("suggest titles: %w", err)
	}

	resolved := make([]*catalog.NormalizedBook, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.FanOut)
	for i, title := range titles {
		g.Go(func() error {
			res, err := a.searcher.Search(gctx, search.Request{
				Query:      title,
				Mode:       search.ModeDirect,
				MaxResults: 1,
				UseCache:   true,
			})
			if err != nil || len(res.Books) == 0 {
				return nil
			}
			book := res.Books[0]
			resolved[i] = &book
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var books []catalog.NormalizedBook
	for _, book := range resolved {
		if book != nil {
			books = append(books, *book)
		}
	}
	a.gateway.Set(ctx, key, cache.ClassSection, books)
	return books, false, nil
}

// trendingBooks searches the most frequent recent terms and takes the top
// few results of each.
func (a *Aggregator) trendingBooks(ctx context.Context, refresh bool) ([]catalog.NormalizedBook, bool, error) {
	key := cache.Key(sectionCachePrefix, map[string]any{"type": string(SectionTrending)})
	if !refresh {
		var cached []catalog.NormalizedBook
		if a.gateway.Get(ctx, key, cache.ClassSection, &cached) {
			return cached, true, nil
		}
	}

	terms, err := a.tracker.Top(ctx, a.cfg.TrendingTerms)
	if err != nil {
		return nil, false, fmt.Errorf("trending terms: %w", err)
	}

	perTerm := make([][]catalog.NormalizedBook, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.FanOut)
	for i, term := range terms {
		g.Go(func() error {
			res, err := a.searcher.Search(gctx, search.Request{
				Query:      term.Term,
				Mode:       search.ModeDirect,
				MaxResults: perTermResults,
				UseCache:   true,
			})
			if err != nil {
				return nil
			}
			perTerm[i] = res.Books
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var books []catalog.NormalizedBook
	for _, termBooks := range perTerm {
		books = append(books, termBooks...)
	}
	a.gateway.Set(ctx, key, cache.ClassSection, books)
	return books, false, nil
}

// relatedBooks runs one catalog search for a same-author or same-genre
// section, cached under the book it belongs to.
func (a *Aggregator) relatedBooks(ctx context.Context, sectionType SectionType, bookID, query string, refresh bool) ([]catalog.NormalizedBook, bool, error) {
	key := cache.Key(sectionCachePrefix, map[string]any{
		"type": string(sectionType),
		"book": bookID,
	})
	if !refresh {
		var cached []catalog.NormalizedBook
		if a.gateway.Get(ctx, key, cache.ClassSection, &cached) {
			return cached, true, nil
		}
	}

	res, err := a.searcher.Search(ctx, search.Request{
		Query:      query,
		Mode:       search.ModeDirect,
		MaxResults: relatedSectionSize,
		UseCache:   true,
	})
	if err != nil {
		return nil, false, err
	}
	a.gateway.Set(ctx, key, cache.ClassSection, res.Books)
	return res.Books, false, nil
}

// finishSection filters books through the running dedup set, records the
// section duration, and returns nil for an empty section.
func (a *Aggregator) finishSection(title string, sectionType SectionType, books []catalog.NormalizedBook, seen map[string]struct{}, cached bool, start time.Time) *Section {
	elapsed := a.now().Sub(start)
	metrics.SectionDuration.WithLabelValues(string(sectionType)).Observe(elapsed.Seconds())

	kept := books[:0]
	for _, book := range books {
		if _, dup := seen[book.ID]; dup {
			continue
		}
		seen[book.ID] = struct{}{}
		kept = append(kept, book)
	}
	if len(kept) == 0 {
		return nil
	}
	return &Section{
		Title:            title,
		Type:             sectionType,
		Books:            kept,
		Cached:           cached,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func (a *Aggregator) buildPrompt(favs []Favorite) string {
	if len(favs) == 0 {
		return "Suggest widely loved books across fiction and non-fiction."
	}
	titles := make([]string, 0, len(favs))
	for _, fav := range favs {
		titles = append(titles, fav.Title)
	}
	return fmt.Sprintf("Suggest books for a reader whose favorites are: %s.", strings.Join(titles, ", "))
}

// capTotal trims sections in order so the whole response holds at most max
// books.
func capTotal(sections []Section, max int) {
	remaining := max
	for i := range sections {
		if len(sections[i].Books) > remaining {
			sections[i].Books = sections[i].Books[:remaining]
		}
		remaining -= len(sections[i].Books)
	}
}

func dropEmpty(sections []Section) []Section {
	kept := sections[:0]
	for _, section := range sections {
		if len(section.Books) > 0 {
			kept = append(kept, section)
		}
	}
	return kept
}

func countBooks(sections []Section) int {
	total := 0
	for _, section := range sections {
		total += len(section.Books)
	}
	return total
}

func allCached(sections []Section) bool {
	if len(sections) == 0 {
		return false
	}
	for _, section := range sections {
		if !section.Cached {
			return false
		}
	}
	return true
}

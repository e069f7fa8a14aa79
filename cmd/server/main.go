// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Command server runs the BookScout orchestration service: catalog search
// with fallback, recommendation aggregation, and the daily pick rotation,
// all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookscout-dev/bookscout/internal/api"
	"github.com/bookscout-dev/bookscout/internal/auth"
	"github.com/bookscout-dev/bookscout/internal/cache"
	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/config"
	"github.com/bookscout-dev/bookscout/internal/dailypick"
	"github.com/bookscout-dev/bookscout/internal/generator"
	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/ratelimit"
	"github.com/bookscout-dev/bookscout/internal/recommend"
	"github.com/bookscout-dev/bookscout/internal/search"
	"github.com/bookscout-dev/bookscout/internal/supervisor"
	"github.com/bookscout-dev/bookscout/internal/trending"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()
	logger.Info().
		Str("primary_catalog", cfg.Catalog.Primary).
		Int("port", cfg.Server.Port).
		Msg("starting bookscout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One Badger instance backs the cache, the daily pick window, the
	// trending counters, and stored favorites, under distinct key prefixes.
	var db *badger.DB
	var store cache.Store
	if cfg.Cache.Path == "" {
		store = cache.NewMemoryStore()
		logger.Warn().Msg("cache.path is empty, using in-memory store; daily pick and favorites will not survive restarts")
		db, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	} else {
		db, err = badger.Open(badger.DefaultOptions(cfg.Cache.Path).WithLogger(nil))
	}
	if err != nil {
		return fmt.Errorf("open badger at %q: %w", cfg.Cache.Path, err)
	}
	defer db.Close()
	if store == nil {
		store = cache.NewBadgerStoreWithDB(db)
	}

	gateway := cache.NewGateway(store, cfg.Cache.SearchTTL, cfg.Cache.SectionTTL, logger)

	google := catalog.NewGoogleBooksAdapter(catalog.GoogleBooksConfig{
		BaseURL:           cfg.Catalog.GoogleBooks.BaseURL,
		APIKey:            cfg.Catalog.GoogleBooks.APIKey,
		Timeout:           cfg.Catalog.GoogleBooks.Timeout,
		RequestsPerSecond: cfg.Catalog.GoogleBooks.RequestsPerSecond,
		Burst:             cfg.Catalog.GoogleBooks.Burst,
	})
	openLibrary := catalog.NewOpenLibraryAdapter(catalog.OpenLibraryConfig{
		BaseURL:           cfg.Catalog.OpenLibrary.BaseURL,
		Timeout:           cfg.Catalog.OpenLibrary.Timeout,
		RequestsPerSecond: cfg.Catalog.OpenLibrary.RequestsPerSecond,
		Burst:             cfg.Catalog.OpenLibrary.Burst,
	})
	var primary, fallback catalog.Adapter = google, openLibrary
	if cfg.Catalog.Primary == "open_library" {
		primary, fallback = openLibrary, google
	}

	var suggester generator.TitleSuggester
	if cfg.Generator.BaseURL != "" {
		suggester = generator.NewClient(generator.Config{
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey,
			Model:   cfg.Generator.Model,
			Timeout: cfg.Generator.Timeout,
		})
	} else {
		logger.Warn().Msg("generator.base_url is empty; prompt-driven search and model-driven recommendations are disabled")
	}

	tracker := trending.NewBadgerTracker(db)
	orchestrator := search.NewOrchestrator(primary, fallback, gateway,
		search.WithSuggester(suggester),
		search.WithTracker(tracker),
		search.WithFanOut(cfg.Recommend.FanOut),
	)

	favorites := recommend.NewBadgerFavorites(db)
	aggregator := recommend.NewAggregator(orchestrator, gateway, recommend.Config{
		MaxRecommendations: cfg.Recommend.MaxRecommendations,
		FavoritesCap:       cfg.Recommend.FavoritesCap,
		MinSectionBooks:    cfg.Recommend.MinSectionBooks,
		FanOut:             cfg.Recommend.FanOut,
		TrendingTerms:      cfg.Recommend.TrendingTerms,
	}, suggester, favorites, tracker)

	scheduler, pickService, err := buildDailyPick(cfg, db)
	if err != nil {
		return err
	}

	withSweep := ratelimit.WithSweepThreshold(cfg.RateLimit.SweepThreshold)
	router := api.NewRouter(api.Dependencies{
		Searcher:           orchestrator,
		Aggregator:         aggregator,
		Scheduler:          scheduler,
		Favorites:          favorites,
		Verifier:           auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Disabled),
		SearchLimiter:      ratelimit.New(cfg.RateLimit.Search.MaxRequests, cfg.RateLimit.Search.Window, withSweep),
		RecommendLimiter:   ratelimit.New(cfg.RateLimit.Recommend.MaxRequests, cfg.RateLimit.Recommend.Window, withSweep),
		AILimiter:          ratelimit.New(cfg.RateLimit.AIBacked.MaxRequests, cfg.RateLimit.AIBacked.Window, withSweep),
		SearchTTL:          cfg.Cache.SearchTTL,
		SectionTTL:         cfg.Cache.SectionTTL,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	if pickService != nil {
		tree.AddJobService(pickService)
	}

	logger.Info().Str("addr", httpServer.Addr).Msg("serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// buildDailyPick assembles the scheduler and, when enabled, its ticker
// service. An unreadable curated file is fatal; an unset path leaves the
// scheduler running against an empty pool, which surfaces as
// no_books_available to operators.
func buildDailyPick(cfg *config.Config, db *badger.DB) (*dailypick.Scheduler, *dailypick.Service, error) {
	logger := logging.Logger()

	var pool dailypick.Pool = dailypick.StaticPool{}
	if cfg.DailyPick.CuratedFile != "" {
		filePool, err := dailypick.LoadFilePool(cfg.DailyPick.CuratedFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn().Str("path", cfg.DailyPick.CuratedFile).Msg("curated pool file missing, daily pick will report no_books_available")
			} else {
				return nil, nil, fmt.Errorf("daily pick pool: %w", err)
			}
		} else {
			pool = filePool
		}
	}

	seed := cfg.DailyPick.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	scheduler := dailypick.NewScheduler(dailypick.NewStore(db), pool, seed,
		dailypick.WithWindowCap(cfg.DailyPick.WindowCap))

	if !cfg.DailyPick.Enabled {
		return scheduler, nil, nil
	}
	return scheduler, dailypick.NewService(scheduler, cfg.DailyPick.CheckInterval, logger), nil
}

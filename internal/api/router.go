// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookscout-dev/bookscout/internal/auth"
	"github.com/bookscout-dev/bookscout/internal/dailypick"
	"github.com/bookscout-dev/bookscout/internal/middleware"
	"github.com/bookscout-dev/bookscout/internal/ratelimit"
	"github.com/bookscout-dev/bookscout/internal/recommend"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Searcher   recommend.Searcher
	Aggregator *recommend.Aggregator
	Scheduler  *dailypick.Scheduler
	Favorites  recommend.FavoritesSource
	Verifier   *auth.Verifier

	// Per-endpoint-class inbound limiters.
	SearchLimiter    *ratelimit.Limiter
	RecommendLimiter *ratelimit.Limiter
	AILimiter        *ratelimit.Limiter

	// TTLs drive the Cache-Control headers.
	SearchTTL  time.Duration
	SectionTTL time.Duration

	CORSAllowedOrigins []string
}

// NewRouter assembles the full route tree. Auth middleware runs before the
// rate limiters so authenticated callers are limited by identity rather
// than address.
func NewRouter(deps Dependencies) *chi.Mux {
	server := &Server{
		searcher:   deps.Searcher,
		aggregator: deps.Aggregator,
		scheduler:  deps.Scheduler,
		favorites:  deps.Favorites,
		searchTTL:  deps.SearchTTL,
		sectionTTL: deps.SectionTTL,
	}

	rejectUnauthenticated := func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required", nil)
	}
	requireAuth := deps.Verifier.Required(rejectUnauthenticated)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoints get a permissive IP limit instead of the
		// caller-facing limiter.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(60, time.Minute))
			r.Get("/health", handleHealth)
			r.Get("/health/live", handleHealth)
			r.Get("/health/ready", handleHealth)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("search"))
			r.Use(deps.Verifier.Optional)
			r.Use(RateLimit(deps.SearchLimiter, "search"))
			r.Post("/search", server.handleSearch)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("recommendations_home"))
			r.Use(requireAuth)
			r.Use(RateLimit(deps.AILimiter, "recommendations_home"))
			r.Get("/recommendations/home", server.handleHomeRecommendations)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("recommendations_book"))
			r.Use(deps.Verifier.Optional)
			r.Use(RateLimit(deps.RecommendLimiter, "recommendations_book"))
			r.Get("/recommendations/book/{bookId}", server.handleBookRecommendations)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("daily_pick"))
			r.Use(RateLimit(deps.RecommendLimiter, "daily_pick"))
			r.Get("/daily-pick", server.handleDailyPickToday)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("daily_pick_run"))
			r.Use(requireAuth)
			r.Post("/internal/daily-pick/run", server.handleDailyPickRun)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics("favorites"))
			r.Use(requireAuth)
			r.Use(RateLimit(deps.RecommendLimiter, "favorites"))
			r.Get("/favorites", server.handleGetFavorites)
			r.Put("/favorites", server.handlePutFavorites)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ok"}, 0)
}

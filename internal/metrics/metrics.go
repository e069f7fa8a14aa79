// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package metrics provides Prometheus instrumentation for BookScout:
// API latency and throughput, inbound rate limiting, cache efficiency,
// upstream catalog health, and daily pick outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookscout_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookscout_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_rate_limit_denials_total",
			Help: "Total number of inbound admissions denied by the rate limiter",
		},
		[]string{"endpoint"},
	)

	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookscout_rate_limit_buckets",
			Help: "Current number of live rate limit buckets",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"ttl_class"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_cache_misses_total",
			Help: "Total number of cache misses (absent, expired, or store failure)",
		},
		[]string{"ttl_class"},
	)

	CacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookscout_cache_write_failures_total",
			Help: "Total number of cache writes dropped due to store failure",
		},
	)

	// Upstream catalog metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_catalog_requests_total",
			Help: "Total number of upstream catalog requests",
		},
		[]string{"provider", "operation", "outcome"}, // outcome: success, error, rejected
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookscout_catalog_request_duration_seconds",
			Help:    "Upstream catalog request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookscout_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	SearchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookscout_search_fallbacks_total",
			Help: "Total number of searches served by the fallback catalog",
		},
	)

	// Recommendation metrics
	SectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookscout_recommend_section_duration_seconds",
			Help:    "Recommendation section build duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"section"},
	)

	SectionOmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_recommend_section_omissions_total",
			Help: "Total number of recommendation sections omitted after failure",
		},
		[]string{"section"},
	)

	// Daily pick metrics
	DailyPickRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookscout_daily_pick_runs_total",
			Help: "Total number of daily pick trigger runs by action",
		},
		[]string{"action"}, // already_exists, picked_new_book, no_books_available, error
	)

	DailyPickWindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookscout_daily_pick_window_size",
			Help: "Current number of records in the daily pick rotation window",
		},
	)
)

// RecordAPIRequest records metrics for one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCatalogRequest records one upstream catalog call.
func RecordCatalogRequest(provider, operation, outcome string, duration time.Duration) {
	CatalogRequests.WithLabelValues(provider, operation, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

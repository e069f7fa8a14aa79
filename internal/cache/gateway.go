// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bookscout-dev/bookscout/internal/metrics"
)

// TTLClass selects which expiry policy a use site wants. Search results go
// stale in minutes; recommendation sections are expensive and stable, so
// they keep a much longer TTL.
type TTLClass string

const (
	// ClassSearch is the short TTL class for raw search results.
	ClassSearch TTLClass = "search"

	// ClassSection is the long TTL class for recommendation sections.
	ClassSection TTLClass = "section"
)

// envelope wraps every cached payload with its write time.
type envelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Gateway is the cache-aside wrapper every orchestration component reads
// through. Store failures never propagate: a failed read is a miss, a
// failed write is a dropped write, and both are logged and counted.
type Gateway struct {
	store  Store
	ttls   map[TTLClass]time.Duration
	logger zerolog.Logger
}

// NewGateway creates a gateway over store with the two TTL classes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewGateway(store Store, searchTTL, sectionTTL time.Duration, logger zerolog.Logger) *Gateway {
	return &Gateway{
		store: store,
		ttls: map[TTLClass]time.Duration{
			ClassSearch:  searchTTL,
			ClassSection: sectionTTL,
		},
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Get reads key into out. Returns false on absence, expiry, store failure,
// or a payload that no longer unmarshals into out's shape.
func (g *Gateway) Get(ctx context.Context, key string, class TTLClass, out interface{}) bool {
	data, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, degrading to miss")
		metrics.CacheMisses.WithLabelValues(string(class)).Inc()
		return false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(class)).Inc()
		return false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, degrading to miss")
		metrics.CacheMisses.WithLabelValues(string(class)).Inc()
		return false
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache payload shape mismatch, degrading to miss")
		metrics.CacheMisses.WithLabelValues(string(class)).Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues(string(class)).Inc()
	return true
}

// Set writes value under key with the class's TTL. Failures are dropped.
func (g *Gateway) Set(ctx context.Context, key string, class TTLClass, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache value not serializable, dropping write")
		metrics.CacheWriteFailures.Inc()
		return
	}

	data, err := json.Marshal(envelope{CachedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		metrics.CacheWriteFailures.Inc()
		return
	}

	if err := g.store.Set(ctx, key, data, g.TTL(class)); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("cache write failed, dropping write")
		metrics.CacheWriteFailures.Inc()
	}
}

// TTL returns the duration configured for a class.
func (g *Gateway) TTL(class TTLClass) time.Duration {
	if ttl, ok := g.ttls[class]; ok {
		return ttl
	}
	return g.ttls[ClassSearch]
}

// Key builds a deterministic cache key from a prefix and the semantically
// relevant request fields. Identical logical requests must collide on the
// same key regardless of call order, so params must never contain
// timestamps or per-request identifiers.
func Key(prefix string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to a plain formatted key
		return fmt.Sprintf("%s:%v", prefix, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", prefix, hash[:16])
}

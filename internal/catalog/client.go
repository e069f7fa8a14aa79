// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/metrics"
)

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 4 << 20

// providerClient is the shared HTTP plumbing under every adapter. It owns
// the three resilience layers toward one provider:
//
//   - an outbound rate.Limiter (the provider budget, distinct from the
//     caller-facing admission limiter)
//   - a circuit breaker that stops hammering a failing provider
//   - a per-call timeout, so a slow provider reads as a failed provider
type providerClient struct {
	name    Source
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	timeout time.Duration
}

// newProviderClient builds the resilient client for one provider.
// Breaker settings: open after 60% failures over at least 5 requests,
// 1 minute closed-state window, 1 minute recovery timeout.
func newProviderClient(name Source, timeout time.Duration, rps float64, burst int) *providerClient {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}

	cbName := string(name)
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("provider", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
		},
	})

	return &providerClient{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: timeout,
	}
}

// getJSON fetches url and unmarshals the body into out. Every failure mode
// (budget exhausted under a canceled context, open breaker, transport error,
// non-2xx status, undecodable body) maps to ErrProviderUnavailable.
func (c *providerClient) getJSON(ctx context.Context, operation, url string, out interface{}) error {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordCatalogRequest(string(c.name), operation, "rejected", time.Since(start))
		return fmt.Errorf("%w: %s budget wait: %v", ErrProviderUnavailable, c.name, err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Quota responses (403/429) count as provider failures too.
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		metrics.RecordCatalogRequest(string(c.name), operation, outcome, time.Since(start))
		return fmt.Errorf("%w: %s %s: %v", ErrProviderUnavailable, c.name, operation, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordCatalogRequest(string(c.name), operation, "error", time.Since(start))
		return fmt.Errorf("%w: %s malformed payload: %v", ErrProviderUnavailable, c.name, err)
	}

	metrics.RecordCatalogRequest(string(c.name), operation, "success", time.Since(start))
	return nil
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

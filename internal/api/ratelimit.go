// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/metrics"
	"github.com/bookscout-dev/bookscout/internal/ratelimit"
)

// RateLimit applies a fixed-window limiter to a route group. The caller key
// is the authenticated user when one is present, the client IP otherwise.
// Denial is a first-class outcome: the client gets a 429 envelope with
// X-RateLimit-Reset and Retry-After so it can schedule a retry.
func RateLimit(limiter *ratelimit.Limiter, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.Admit(callerKey(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RateLimitDenials.WithLabelValues(endpoint).Inc()
				logging.Ctx(r.Context()).Debug().
					Str("endpoint", endpoint).
					Msg("rate limit exceeded")
				WriteError(w, r, http.StatusTooManyRequests, CodeTooManyRequests,
					"rate limit exceeded, retry after the indicated delay", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the caller for rate limiting purposes.
func callerKey(r *http.Request) string {
	if callerID := logging.CallerIDFromContext(r.Context()); callerID != "" {
		return "user:" + callerID
	}
	return "ip:" + clientIP(r)
}

// clientIP extracts the originating address, trusting proxy headers the way
// the deployment's reverse proxy sets them.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

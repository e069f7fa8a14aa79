// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	callerIDKey  contextKey = "caller_id"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCallerID returns a new context carrying the authenticated
// caller identity. Set by the auth middleware.
func ContextWithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerIDKey, id)
}

// CallerIDFromContext retrieves the authenticated caller identity from
// context. Returns empty string for anonymous requests.
func CallerIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(callerIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with request_id and caller_id automatically added
// when present. This is the recommended way to log inside handlers and
// orchestration code.
//
//	logging.Ctx(ctx).Info().Msg("search complete")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}
	if callerID := CallerIDFromContext(ctx); callerID != "" {
		logger = logger.With().Str("caller_id", callerID).Logger()
	}

	return &logger
}

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package catalog

import (
	"context"
	"errors"
)

// Adapter is the capability set every upstream book catalog exposes.
//
// Failure contract: adapter errors (timeout, malformed payload, provider
// quota message) surface as ErrProviderUnavailable, never as a panic or an
// unclassified error, so orchestration can always route to a fallback.
type Adapter interface {
	// Name returns the provider tag, matching the Source on its records.
	Name() Source

	// Search returns up to maxResults normalized records for query.
	Search(ctx context.Context, query string, maxResults int) ([]NormalizedBook, error)

	// GetByID resolves a single record. Returns ErrNotFound when the
	// identifier resolves to nothing.
	GetByID(ctx context.Context, id string) (*NormalizedBook, error)
}

var (
	// ErrProviderUnavailable signals an upstream catalog failure. The
	// orchestrator treats it as a fallback trigger, not a user error.
	ErrProviderUnavailable = errors.New("catalog provider unavailable")

	// ErrNotFound signals an identifier that resolves to nothing.
	ErrNotFound = errors.New("book not found")
)

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package catalog defines the common book record and the adapter contract
// that every upstream book catalog is normalized through. Each provider gets
// one adapter owning the translation from its schema (inconsistent field
// casing, nested vs. flat author lists, multiple thumbnail variants) into
// NormalizedBook; nothing downstream ever touches provider payloads.
package catalog

import "strings"

// Source tags which provider a record was normalized from.
type Source string

const (
	SourceGoogleBooks Source = "google_books"
	SourceOpenLibrary Source = "open_library"

	// SourceFavorites tags records transformed from a caller's stored
	// favorites rather than fetched from an upstream catalog.
	SourceFavorites Source = "favorites"
)

// UnknownAuthor is substituted when a provider returns no authors, so
// emptiness never propagates downstream.
const UnknownAuthor = "Unknown Author"

// NormalizedBook is the common record all catalog adapters produce.
// ID and Source are unique together; records from different sources
// describing the same physical book are not merged automatically.
type NormalizedBook struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Language      string   `json:"language,omitempty"`
	Source        Source   `json:"source"`

	// Score is provider-defined relevance on the provider's own scale.
	Score float64 `json:"score,omitempty"`

	// Confidence (0-1) is set only on model-driven recommendations.
	Confidence float64 `json:"confidence,omitempty"`
}

// PrimaryAuthor returns the first author, or the UnknownAuthor sentinel.
func (b *NormalizedBook) PrimaryAuthor() string {
	if len(b.Authors) == 0 {
		return UnknownAuthor
	}
	return b.Authors[0]
}

// Dedupe removes duplicates from books, preserving first-seen order.
// A duplicate is an exact ID match or an exact case-insensitive title
// match; this is the only deduplication performed within a response set.
func Dedupe(books []NormalizedBook) []NormalizedBook {
	seenIDs := make(map[string]struct{}, len(books))
	seenTitles := make(map[string]struct{}, len(books))

	out := books[:0]
	for _, b := range books {
		title := strings.ToLower(strings.TrimSpace(b.Title))
		if _, dup := seenIDs[b.ID]; dup {
			continue
		}
		if _, dup := seenTitles[title]; dup && title != "" {
			continue
		}
		seenIDs[b.ID] = struct{}{}
		if title != "" {
			seenTitles[title] = struct{}{}
		}
		out = append(out, b)
	}
	return out
}

// normalizeAuthors guarantees a non-empty, trimmed author list.
func normalizeAuthors(authors []string) []string {
	cleaned := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			cleaned = append(cleaned, a)
		}
	}
	if len(cleaned) == 0 {
		return []string{UnknownAuthor}
	}
	return cleaned
}

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package dailypick maintains a capped, non-repeating rotation of curated
// books, selecting one per UTC day idempotently. The rotation window lives
// in Badger; a conditional insert on the unique date key makes concurrent
// triggers for the same day race-safe.
package dailypick

import (
	"time"
	"unicode/utf8"

	"github.com/bookscout-dev/bookscout/internal/catalog"
)

// DateLayout is the UTC calendar-day key format.
const DateLayout = "2006-01-02"

// Record is one day's pick. Display fields are snapshotted at selection
// time so historical entries stay stable even if the catalog item changes.
// Records are never mutated after creation.
type Record struct {
	Date      string    `json:"date"`
	ItemRef   string    `json:"itemRef"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
	PickedAt  time.Time `json:"pickedAt"`
}

// rationaleLimit caps the snapshotted description, in bytes.
const rationaleLimit = 280

// snapshot freezes a book's display fields into a record for date.
func snapshot(book catalog.NormalizedBook, date string, pickedAt time.Time) Record {
	rationale := truncateUTF8(book.Description, rationaleLimit)
	return Record{
		Date:      date,
		ItemRef:   book.ID,
		Title:     book.Title,
		Author:    book.PrimaryAuthor(),
		ImageURL:  book.ImageURL,
		Rationale: rationale,
		PickedAt:  pickedAt,
	}
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

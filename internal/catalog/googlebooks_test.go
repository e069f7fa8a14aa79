// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const volumesFixture = `{
	"totalItems": 2,
	"items": [
		{
			"id": "vol-1",
			"volumeInfo": {
				"title": "Dune",
				"authors": ["Frank Herbert"],
				"description": "Desert planet epic",
				"publishedDate": "1965",
				"industryIdentifiers": [
					{"type": "ISBN_10", "identifier": "0441013597"},
					{"type": "ISBN_13", "identifier": "9780441013593"}
				],
				"imageLinks": {
					"thumbnail": "http://img/thumb.jpg",
					"medium": "http://img/medium.jpg"
				},
				"categories": ["Fiction"],
				"pageCount": 412,
				"language": "en",
				"averageRating": 4.5
			}
		},
		{
			"id": "vol-2",
			"volumeInfo": {
				"title": "Anonymous Work",
				"imageLinks": {"smallThumbnail": "http://img/small-thumb.jpg"}
			}
		}
	]
}`

func newGoogleBooksTestAdapter(t *testing.T, handler http.HandlerFunc) *GoogleBooksAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGoogleBooksAdapter(GoogleBooksConfig{
		BaseURL:           server.URL,
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestGoogleBooksSearchNormalization(t *testing.T) {
	a := newGoogleBooksTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "dune" {
			t.Errorf("query param q = %q, want dune", got)
		}
		w.Write([]byte(volumesFixture))
	})

	books, err := a.Search(context.Background(), "dune", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2", len(books))
	}

	first := books[0]
	if first.ID != "vol-1" || first.Title != "Dune" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.ISBN != "9780441013593" {
		t.Errorf("ISBN = %q, want ISBN_13 preferred", first.ISBN)
	}
	if first.ImageURL != "http://img/medium.jpg" {
		t.Errorf("ImageURL = %q, want medium variant (largest available)", first.ImageURL)
	}
	if first.Source != SourceGoogleBooks {
		t.Errorf("Source = %q, want %q", first.Source, SourceGoogleBooks)
	}

	second := books[1]
	if len(second.Authors) != 1 || second.Authors[0] != UnknownAuthor {
		t.Errorf("empty authors must become %q, got %v", UnknownAuthor, second.Authors)
	}
	if second.ImageURL != "http://img/small-thumb.jpg" {
		t.Errorf("ImageURL = %q, want smallThumbnail fallback", second.ImageURL)
	}
}

func TestGoogleBooksSearchProviderError(t *testing.T) {
	a := newGoogleBooksTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusForbidden)
	})

	_, err := a.Search(context.Background(), "dune", 10)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("quota response must map to ErrProviderUnavailable, got %v", err)
	}
}

func TestGoogleBooksSearchMalformedPayload(t *testing.T) {
	a := newGoogleBooksTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": "not-an-array"`))
	})

	_, err := a.Search(context.Background(), "dune", 10)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("malformed payload must map to ErrProviderUnavailable, got %v", err)
	}
}

func TestGoogleBooksGetByID(t *testing.T) {
	a := newGoogleBooksTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/volumes/vol-1" {
			t.Errorf("path = %q, want /volumes/vol-1", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "vol-1",
			"volumeInfo": {"title": "Dune", "authors": ["Frank Herbert"]}
		}`))
	})

	book, err := a.GetByID(context.Background(), "vol-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if book.Title != "Dune" {
		t.Errorf("Title = %q, want Dune", book.Title)
	}
	if book.PrimaryAuthor() != "Frank Herbert" {
		t.Errorf("PrimaryAuthor = %q", book.PrimaryAuthor())
	}
}

func TestThumbnailPriorityOrder(t *testing.T) {
	tests := []struct {
		name  string
		links imageLinks
		want  string
	}{
		{"extra large wins", imageLinks{ExtraLarge: "xl", Large: "l", Thumbnail: "t"}, "xl"},
		{"large over medium", imageLinks{Large: "l", Medium: "m"}, "l"},
		{"small over thumbnail", imageLinks{Small: "s", Thumbnail: "t"}, "s"},
		{"thumbnail fallback", imageLinks{Thumbnail: "t", SmallThumbnail: "st"}, "t"},
		{"none", imageLinks{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.links.bestThumbnail(); got != tt.want {
				t.Errorf("bestThumbnail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	books := []NormalizedBook{
		{ID: "a", Title: "Dune"},
		{ID: "a", Title: "Dune (reissue)"}, // duplicate ID
		{ID: "b", Title: "DUNE"},           // duplicate title, case-insensitive
		{ID: "c", Title: "Hyperion"},
	}

	got := Dedupe(books)
	if len(got) != 2 {
		t.Fatalf("got %d books after dedupe, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("dedupe must keep first occurrence order, got %+v", got)
	}
}

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package recommend composes ranked, deduplicated recommendation sections
// from favorites, model-driven suggestions, and trending search terms. Every
// section is independently cacheable and independently fail-soft; a single
// id set carried across sections is the only dedup authority.
package recommend

import (
	"github.com/bookscout-dev/bookscout/internal/catalog"
)

// SectionType tags where a section's books came from.
type SectionType string

const (
	SectionFavorites   SectionType = "favorites"
	SectionModelDriven SectionType = "modelDriven"
	SectionTrending    SectionType = "trending"
	SectionSameAuthor  SectionType = "sameAuthor"
	SectionSameGenre   SectionType = "sameGenre"
)

// Section is one independently built slice of the recommendation response.
type Section struct {
	Title            string                   `json:"title"`
	Type             SectionType              `json:"type"`
	Books            []catalog.NormalizedBook `json:"books"`
	Cached           bool                     `json:"cached"`
	ProcessingTimeMs int64                    `json:"processingTimeMs"`
}

// HomeResult is the aggregate returned for the home recommendations view.
type HomeResult struct {
	Sections   []Section `json:"sections"`
	TotalBooks int       `json:"totalBooks"`
	Cached     bool      `json:"cached"`
}

// HomeRequest parameterizes one home aggregation.
type HomeRequest struct {
	UserID             string
	MaxRecommendations int
	IncludeFavorites   bool
	Refresh            bool
}

// BookDetailRequest parameterizes related-book recommendations for one book.
type BookDetailRequest struct {
	BookID             string
	IncludeAuthorBooks bool
	IncludeGenreBooks  bool
	ExcludeCurrentBook bool
	Refresh            bool
}

// BookDetailResult carries the related-book sections for one book.
type BookDetailResult struct {
	Book       *catalog.NormalizedBook `json:"book"`
	Sections   []Section               `json:"sections"`
	TotalBooks int                     `json:"totalBooks"`
}

// Favorite is a caller-owned favorite record, already resolved to display
// fields when it was favorited. Building the favorites section is a pure
// transform and never touches the network.
type Favorite struct {
	BookID   string `json:"bookId"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ToNormalized converts a favorite into the common record shape.
func (f Favorite) ToNormalized() catalog.NormalizedBook {
	authors := []string{f.Author}
	if f.Author == "" {
		authors = []string{catalog.UnknownAuthor}
	}
	return catalog.NormalizedBook{
		ID:       f.BookID,
		Title:    f.Title,
		Authors:  authors,
		ImageURL: f.ImageURL,
		Source:   catalog.SourceFavorites,
	}
}

// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GoogleBooksAdapter normalizes the Google Books volumes API. The provider
// nests everything under volumeInfo and exposes up to six thumbnail sizes.
type GoogleBooksAdapter struct {
	client  *providerClient
	baseURL string
	apiKey  string
}

// GoogleBooksConfig holds the adapter's provider settings.
type GoogleBooksConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewGoogleBooksAdapter creates the Google Books adapter.
func NewGoogleBooksAdapter(cfg GoogleBooksConfig) *GoogleBooksAdapter {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/books/v1"
	}
	return &GoogleBooksAdapter{
		client:  newProviderClient(SourceGoogleBooks, cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst),
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
	}
}

// Name implements Adapter.
func (a *GoogleBooksAdapter) Name() Source {
	return SourceGoogleBooks
}

// volumesResponse mirrors the provider's search payload.
type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	PublishedDate       string               `json:"publishedDate"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          imageLinks           `json:"imageLinks"`
	Categories          []string             `json:"categories"`
	PageCount           int                  `json:"pageCount"`
	Language            string               `json:"language"`
	AverageRating       float64              `json:"averageRating"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type imageLinks struct {
	ExtraLarge     string `json:"extraLarge"`
	Large          string `json:"large"`
	Medium         string `json:"medium"`
	Small          string `json:"small"`
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

// bestThumbnail applies the fixed priority order, largest first.
func (l imageLinks) bestThumbnail() string {
	for _, candidate := range []string{l.ExtraLarge, l.Large, l.Medium, l.Small, l.Thumbnail, l.SmallThumbnail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Search implements Adapter.
func (a *GoogleBooksAdapter) Search(ctx context.Context, query string, maxResults int) ([]NormalizedBook, error) {
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 40 {
		maxResults = 40 // provider hard limit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	if a.apiKey != "" {
		params.Set("key", a.apiKey)
	}

	var resp volumesResponse
	if err := a.client.getJSON(ctx, "search", a.baseURL+"/volumes?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	books := make([]NormalizedBook, 0, len(resp.Items))
	for i := range resp.Items {
		if b := a.normalize(&resp.Items[i]); b != nil {
			books = append(books, *b)
		}
	}
	return books, nil
}

// GetByID implements Adapter.
func (a *GoogleBooksAdapter) GetByID(ctx context.Context, id string) (*NormalizedBook, error) {
	u := a.baseURL + "/volumes/" + url.PathEscape(id)
	if a.apiKey != "" {
		u += "?key=" + url.QueryEscape(a.apiKey)
	}

	var v volume
	if err := a.client.getJSON(ctx, "get", u, &v); err != nil {
		return nil, err
	}

	b := a.normalize(&v)
	if b == nil {
		return nil, ErrNotFound
	}
	return b, nil
}

// normalize translates one volume. Returns nil for records without an ID
// or title, which are unusable downstream.
func (a *GoogleBooksAdapter) normalize(v *volume) *NormalizedBook {
	if v.ID == "" || v.VolumeInfo.Title == "" {
		return nil
	}

	return &NormalizedBook{
		ID:            v.ID,
		Title:         v.VolumeInfo.Title,
		Authors:       normalizeAuthors(v.VolumeInfo.Authors),
		Description:   v.VolumeInfo.Description,
		PublishedDate: v.VolumeInfo.PublishedDate,
		ISBN:          pickISBN(v.VolumeInfo.IndustryIdentifiers),
		ImageURL:      v.VolumeInfo.ImageLinks.bestThumbnail(),
		Categories:    v.VolumeInfo.Categories,
		PageCount:     v.VolumeInfo.PageCount,
		Language:      v.VolumeInfo.Language,
		Source:        SourceGoogleBooks,
		Score:         v.VolumeInfo.AverageRating,
	}
}

// pickISBN prefers ISBN_13 over ISBN_10.
func pickISBN(ids []industryIdentifier) string {
	var isbn10 string
	for _, id := range ids {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

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

	"github.com/goccy/go-json"
)

// OpenLibraryAdapter normalizes the Open Library search API. Unlike Google
// Books the schema is flat: author names arrive as author_name arrays and
// covers as numeric cover_i IDs resolved through covers.openlibrary.org.
type OpenLibraryAdapter struct {
	client   *providerClient
	baseURL  string
	coverURL string
}

// OpenLibraryConfig holds the adapter's provider settings.
type OpenLibraryConfig struct {
	BaseURL           string
	CoverBaseURL      string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewOpenLibraryAdapter creates the Open Library adapter.
func NewOpenLibraryAdapter(cfg OpenLibraryConfig) *OpenLibraryAdapter {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	coverURL := strings.TrimSuffix(cfg.CoverBaseURL, "/")
	if coverURL == "" {
		coverURL = "https://covers.openlibrary.org"
	}
	return &OpenLibraryAdapter{
		client:   newProviderClient(SourceOpenLibrary, cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst),
		baseURL:  baseURL,
		coverURL: coverURL,
	}
}

// Name implements Adapter.
func (a *OpenLibraryAdapter) Name() Source {
	return SourceOpenLibrary
}

// searchResponse mirrors the provider's search payload.
type searchResponse struct {
	NumFound int          `json:"numFound"`
	Docs     []searchDoc  `json:"docs"`
}

type searchDoc struct {
	Key             string   `json:"key"` // "/works/OL45883W"
	Title           string   `json:"title"`
	AuthorName      []string `json:"author_name"`
	FirstPublish    int      `json:"first_publish_year"`
	ISBN            []string `json:"isbn"`
	CoverID         int64    `json:"cover_i"`
	Subject         []string `json:"subject"`
	Language        []string `json:"language"`
	MedianPageCount int      `json:"number_of_pages_median"`
}

// workResponse mirrors the provider's single-work payload.
type workResponse struct {
	Key         string        `json:"key"`
	Title       string        `json:"title"`
	Covers      []int64       `json:"covers"`
	Subjects    []string      `json:"subjects"`
	Description workDescValue `json:"description"`
}

// workDescValue tolerates the provider's two description encodings:
// a bare string or {"type": ..., "value": ...}.
type workDescValue struct {
	Value string
}

func (d *workDescValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &d.Value)
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unknown shape; treat as absent rather than failing the record.
		d.Value = ""
		return nil
	}
	d.Value = obj.Value
	return nil
}

// Search implements Adapter.
func (a *OpenLibraryAdapter) Search(ctx context.Context, query string, maxResults int) ([]NormalizedBook, error) {
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", maxResults))

	var resp searchResponse
	if err := a.client.getJSON(ctx, "search", a.baseURL+"/search.json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	books := make([]NormalizedBook, 0, len(resp.Docs))
	for i := range resp.Docs {
		if b := a.normalize(&resp.Docs[i]); b != nil {
			books = append(books, *b)
		}
	}
	return books, nil
}

// GetByID implements Adapter. Accepts bare work IDs ("OL45883W") and full
// keys ("/works/OL45883W").
func (a *OpenLibraryAdapter) GetByID(ctx context.Context, id string) (*NormalizedBook, error) {
	workID := strings.TrimPrefix(id, "/works/")

	var resp workResponse
	if err := a.client.getJSON(ctx, "get", a.baseURL+"/works/"+url.PathEscape(workID)+".json", &resp); err != nil {
		return nil, err
	}
	if resp.Title == "" {
		return nil, ErrNotFound
	}

	book := &NormalizedBook{
		ID:          workID,
		Title:       resp.Title,
		Authors:     []string{UnknownAuthor}, // work payloads carry author keys, not names
		Description: resp.Description.Value,
		Categories:  clampList(resp.Subjects, 5),
		Source:      SourceOpenLibrary,
	}
	if len(resp.Covers) > 0 {
		book.ImageURL = a.coverImage(resp.Covers[0])
	}
	return book, nil
}

// normalize translates one search doc. Returns nil for records without a
// key or title.
func (a *OpenLibraryAdapter) normalize(doc *searchDoc) *NormalizedBook {
	if doc.Key == "" || doc.Title == "" {
		return nil
	}

	book := &NormalizedBook{
		ID:         strings.TrimPrefix(doc.Key, "/works/"),
		Title:      doc.Title,
		Authors:    normalizeAuthors(doc.AuthorName),
		Categories: clampList(doc.Subject, 5),
		PageCount:  doc.MedianPageCount,
		Source:     SourceOpenLibrary,
	}
	if doc.FirstPublish > 0 {
		book.PublishedDate = fmt.Sprintf("%d", doc.FirstPublish)
	}
	if len(doc.ISBN) > 0 {
		book.ISBN = doc.ISBN[0]
	}
	if len(doc.Language) > 0 {
		book.Language = doc.Language[0]
	}
	if doc.CoverID > 0 {
		book.ImageURL = a.coverImage(doc.CoverID)
	}
	return book
}

// coverImage builds the large-variant cover URL. Open Library serves a
// single ID at three sizes; large is always present when any size is.
func (a *OpenLibraryAdapter) coverImage(coverID int64) string {
	return fmt.Sprintf("%s/b/id/%d-L.jpg", a.coverURL, coverID)
}

// clampList caps a provider list at n entries.
func clampList(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

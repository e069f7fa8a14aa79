// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/bookscout-dev/bookscout/internal/auth"
	"github.com/bookscout-dev/bookscout/internal/cache"
	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/dailypick"
	"github.com/bookscout-dev/bookscout/internal/ratelimit"
	"github.com/bookscout-dev/bookscout/internal/recommend"
	"github.com/bookscout-dev/bookscout/internal/search"
)

const testSecret = "router-test-secret"

type fakeSearcher struct {
	results map[string][]catalog.NormalizedBook
	byID    map[string]catalog.NormalizedBook
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (*search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	books := f.results[req.Query]
	return &search.Result{Books: books, TotalResults: len(books), Origin: search.OriginPrimary}, nil
}

func (f *fakeSearcher) Lookup(_ context.Context, id string) (*catalog.NormalizedBook, error) {
	if f.err != nil {
		return nil, f.err
	}
	book, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &book, nil
}

func newTestRouter(t *testing.T, searcher *fakeSearcher) http.Handler {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gateway := cache.NewGateway(cache.NewMemoryStore(), time.Minute, time.Hour, zerolog.Nop())
	favorites := recommend.NewMemoryFavorites()
	aggregator := recommend.NewAggregator(searcher, gateway, recommend.DefaultConfig(), nil, favorites, nil)
	pool := dailypick.StaticPool{{ID: "p1", Title: "Pick", Authors: []string{"A"}, Source: catalog.SourceGoogleBooks}}
	scheduler := dailypick.NewScheduler(dailypick.NewStore(db), pool, 42)

	return NewRouter(Dependencies{
		Searcher:           searcher,
		Aggregator:         aggregator,
		Scheduler:          scheduler,
		Favorites:          favorites,
		Verifier:           auth.NewVerifier(testSecret, false),
		SearchLimiter:      ratelimit.New(3, time.Minute),
		RecommendLimiter:   ratelimit.New(10, time.Minute),
		AILimiter:          ratelimit.New(5, time.Minute),
		SearchTTL:          5 * time.Minute,
		SectionTTL:         6 * time.Hour,
		CORSAllowedOrigins: []string{"*"},
	})
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]catalog.NormalizedBook{
		"dune": {{ID: "g1", Title: "Dune", Authors: []string{"Frank Herbert"}, Source: catalog.SourceGoogleBooks}},
	}}
	router := newTestRouter(t, searcher)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"dune"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Error("expected success envelope")
	}
	if resp.RequestID == "" {
		t.Error("expected a request id in the envelope")
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Errorf("expected X-RateLimit-Limit 3, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Errorf("expected X-RateLimit-Remaining 2, got %q", got)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestSearchValidation(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})

	cases := map[string]string{
		"empty query":        `{"query":""}`,
		"query too long":     `{"query":"` + strings.Repeat("a", 501) + `"}`,
		"bad mode":           `{"query":"x","mode":"psychic"}`,
		"maxResults too big": `{"query":"x","maxResults":51}`,
		"not json":           `not json`,
	}
	addr := 0
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
		// Distinct client IPs keep the limiter out of the way.
		addr++
		req.RemoteAddr = fmt.Sprintf("10.1.0.%d:1234", addr)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
			continue
		}
		resp := decodeEnvelope(t, rec)
		if resp.Error == nil || resp.Error.Code != CodeValidationFailed {
			t.Errorf("%s: expected VALIDATION_FAILED, got %+v", name, resp.Error)
		}
	}
}

func TestSearchRateLimitDenial(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})

	var rec *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"x"}`))
		req.RemoteAddr = "10.0.0.9:1234"
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 4th request, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on denial")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header on denial")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeTooManyRequests {
		t.Errorf("expected TOO_MANY_REQUESTS, got %+v", resp.Error)
	}
}

func TestSearchProviderUnavailable(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{err: catalog.ErrProviderUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeExternalServiceFailed {
		t.Errorf("expected EXTERNAL_SERVICE_FAILED, got %+v", resp.Error)
	}
}

func TestHomeRecommendationsRequireAuth(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/home", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/home", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBookRecommendationsNotFound(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{byID: map[string]catalog.NormalizedBook{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/book/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDailyPickRunAndRead(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})

	// Before a run, today's pick does not exist.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/daily-pick", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first run, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/internal/daily-pick/run", nil)
	req.Header.Set("Authorization", bearer(t, "ops"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from trigger, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var run dailypick.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	if run.Action != dailypick.ActionPicked {
		t.Errorf("expected picked_new_book, got %s", run.Action)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/daily-pick", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after run, got %d", rec.Code)
	}
}

func TestFavoritesRoundTrip(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})
	token := bearer(t, "reader-1")

	body := `[{"bookId":"g1","title":"Dune","author":"Frank Herbert"}]`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/favorites", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from put, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from get, got %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var favorites []recommend.Favorite
	if err := json.Unmarshal(data, &favorites); err != nil {
		t.Fatalf("decode favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].BookID != "g1" {
		t.Errorf("unexpected favorites: %+v", favorites)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{})

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

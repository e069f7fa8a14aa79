// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/bookscout-dev/bookscout/internal/catalog"
	"github.com/bookscout-dev/bookscout/internal/dailypick"
	"github.com/bookscout-dev/bookscout/internal/logging"
	"github.com/bookscout-dev/bookscout/internal/recommend"
	"github.com/bookscout-dev/bookscout/internal/search"
	"github.com/bookscout-dev/bookscout/internal/validation"
)

const maxBodyBytes = 1 << 20

// Server holds the handler dependencies.
type Server struct {
	searcher   recommend.Searcher
	aggregator *recommend.Aggregator
	scheduler  *dailypick.Scheduler
	favorites  recommend.FavoritesSource
	searchTTL  time.Duration
	sectionTTL time.Duration
}

// searchResponse adds the envelope's cached flag to the search result.
type searchResponse struct {
	*search.Result
	Cached bool `json:"cached"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body SearchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeValidationFailed, "request body is not valid JSON", nil)
		return
	}
	if fields := validation.ValidateStruct(body); fields != nil {
		WriteError(w, r, http.StatusBadRequest, CodeValidationFailed, "request validation failed", fields)
		return
	}

	useCache := true
	if body.UseCache != nil {
		useCache = *body.UseCache
	}
	result, err := s.searcher.Search(r.Context(), search.Request{
		Query:      body.Query,
		Mode:       search.Mode(body.Mode),
		UserID:     body.UserID,
		MaxResults: body.MaxResults,
		StartIndex: body.StartIndex,
		UseCache:   useCache,
	})
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}

	s.setCacheControl(w, s.searchTTL)
	WriteSuccess(w, r, searchResponse{Result: result, Cached: result.Origin == search.OriginCache},
		time.Since(start).Milliseconds())
}

func (s *Server) handleHomeRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result, err := s.aggregator.Home(r.Context(), recommend.HomeRequest{
		UserID:             logging.CallerIDFromContext(r.Context()),
		MaxRecommendations: queryInt(r, "maxRecommendations", 0, 1, 50),
		IncludeFavorites:   queryBool(r, "includeFavorites", true),
		Refresh:            queryBool(r, "refresh", false),
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("home recommendations failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to build recommendations", nil)
		return
	}

	s.setCacheControl(w, s.sectionTTL)
	WriteSuccess(w, r, result, time.Since(start).Milliseconds())
}

func (s *Server) handleBookRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bookID := chi.URLParam(r, "bookId")
	if bookID == "" {
		WriteError(w, r, http.StatusBadRequest, CodeValidationFailed, "bookId is required", nil)
		return
	}

	result, err := s.aggregator.BookDetail(r.Context(), recommend.BookDetailRequest{
		BookID:             bookID,
		IncludeAuthorBooks: queryBool(r, "includeAuthorBooks", true),
		IncludeGenreBooks:  queryBool(r, "includeGenreBooks", true),
		ExcludeCurrentBook: queryBool(r, "excludeCurrentBook", true),
		Refresh:            queryBool(r, "refresh", false),
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			WriteError(w, r, http.StatusNotFound, CodeNotFound, fmt.Sprintf("book %s not found", bookID), nil)
		case errors.Is(err, catalog.ErrProviderUnavailable):
			WriteError(w, r, http.StatusServiceUnavailable, CodeExternalServiceFailed, "book catalogs are unavailable", nil)
		default:
			logging.Ctx(r.Context()).Error().Err(err).Str("book_id", bookID).Msg("book recommendations failed")
			WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to build recommendations", nil)
		}
		return
	}

	s.setCacheControl(w, s.sectionTTL)
	WriteSuccess(w, r, result, time.Since(start).Milliseconds())
}

func (s *Server) handleDailyPickRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result, err := s.scheduler.Run(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("daily pick trigger failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "daily pick trigger failed", nil)
		return
	}
	WriteSuccess(w, r, result, time.Since(start).Milliseconds())
}

func (s *Server) handleDailyPickToday(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	record, ok, err := s.scheduler.Today(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("daily pick read failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "daily pick read failed", nil)
		return
	}
	if !ok {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "no pick recorded for today", nil)
		return
	}

	s.setCacheControl(w, s.sectionTTL)
	WriteSuccess(w, r, record, time.Since(start).Milliseconds())
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := logging.CallerIDFromContext(r.Context())
	favorites, err := s.favorites.FavoritesFor(r.Context(), userID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("favorites read failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to load favorites", nil)
		return
	}
	if favorites == nil {
		favorites = []recommend.Favorite{}
	}
	WriteSuccess(w, r, favorites, time.Since(start).Milliseconds())
}

func (s *Server) handlePutFavorites(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var favorites []recommend.Favorite
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&favorites); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeValidationFailed, "request body is not valid JSON", nil)
		return
	}
	if len(favorites) > 100 {
		WriteError(w, r, http.StatusBadRequest, CodeValidationFailed, "at most 100 favorites may be stored", nil)
		return
	}
	for i, favorite := range favorites {
		if favorite.BookID == "" || favorite.Title == "" {
			WriteError(w, r, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("favorite %d is missing bookId or title", i), nil)
			return
		}
	}

	userID := logging.CallerIDFromContext(r.Context())
	if err := s.favorites.SaveFavorites(r.Context(), userID, favorites); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("favorites write failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to store favorites", nil)
		return
	}
	WriteSuccess(w, r, map[string]int{"count": len(favorites)}, time.Since(start).Milliseconds())
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrProviderUnavailable) {
		WriteError(w, r, http.StatusServiceUnavailable, CodeExternalServiceFailed, "book catalogs are unavailable", nil)
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Msg("search failed")
	WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "search failed", nil)
}

// setCacheControl reflects the TTL class of the underlying data so clients
// and intermediaries can reuse responses.
func (s *Server) setCacheControl(w http.ResponseWriter, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
}

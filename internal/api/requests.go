// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package api

import (
	"net/http"
	"strconv"
)

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query      string `json:"query" validate:"required,max=500"`
	Mode       string `json:"mode" validate:"omitempty,oneof=direct promptDriven"`
	UserID     string `json:"userId" validate:"omitempty,max=128"`
	MaxResults int    `json:"maxResults" validate:"omitempty,min=1,max=50"`
	StartIndex int    `json:"startIndex" validate:"omitempty,min=0"`
	UseCache   *bool  `json:"useCache"`
}

// queryBool reads a boolean query parameter with a default.
func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return value
}

// queryInt reads a bounded integer query parameter with a default.
func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return def
	}
	return value
}

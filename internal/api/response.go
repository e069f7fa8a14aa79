// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package api exposes the HTTP surface: routing, request validation, the
// response envelope, and the caller-facing rate limit middleware.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/bookscout-dev/bookscout/internal/logging"
)

// Error codes carried in the response envelope.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotFound              = "NOT_FOUND"
	CodeTooManyRequests       = "TOO_MANY_REQUESTS"
	CodeExternalServiceFailed = "EXTERNAL_SERVICE_FAILED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// APIError is the machine-readable error half of the envelope.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Response is the envelope every endpoint writes.
type Response struct {
	Success          bool        `json:"success"`
	Data             interface{} `json:"data,omitempty"`
	Error            *APIError   `json:"error,omitempty"`
	RequestID        string      `json:"requestId,omitempty"`
	ProcessingTimeMs int64       `json:"processingTimeMs,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	resp.RequestID = logging.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}, processingMs int64) {
	writeJSON(w, r, http.StatusOK, Response{Success: true, Data: data, ProcessingTimeMs: processingMs})
}

// WriteError writes an error envelope with the given status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	writeJSON(w, r, status, Response{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

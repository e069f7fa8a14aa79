// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package auth verifies bearer tokens and threads the caller identity
// through the request context. The identity provider itself is external;
// this package only checks HMAC-signed claims.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookscout-dev/bookscout/internal/logging"
)

// ErrNoToken signals a request without a bearer token.
var ErrNoToken = errors.New("no bearer token")

// Verifier checks bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret   []byte
	disabled bool
}

// NewVerifier builds a verifier. When disabled is true every request
// passes with an empty identity, for local development only.
func NewVerifier(secret string, disabled bool) *Verifier {
	return &Verifier{secret: []byte(secret), disabled: disabled}
}

// identify extracts and verifies the caller identity from the request.
func (v *Verifier) identify(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("malformed authorization header")
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// Optional attaches the caller identity to the context when a valid token
// is present and lets anonymous requests through.
func (v *Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.disabled {
			if callerID, err := v.identify(r); err == nil {
				r = r.WithContext(logging.ContextWithCallerID(r.Context(), callerID))
			} else if !errors.Is(err, ErrNoToken) {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("ignoring invalid bearer token")
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Required rejects requests without a verified caller identity. The
// rejection body is written by onReject so the response envelope stays in
// the api package.
func (v *Verifier) Required(onReject func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v.disabled {
				next.ServeHTTP(w, r)
				return
			}
			callerID, err := v.identify(r)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("rejecting unauthenticated request")
				onReject(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logging.ContextWithCallerID(r.Context(), callerID)))
		})
	}
}

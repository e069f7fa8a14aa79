// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package config

import (
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Server.Port != 8099 {
		t.Errorf("unexpected default port %d", cfg.Server.Port)
	}
	if cfg.Catalog.Primary != "google_books" {
		t.Errorf("unexpected default primary %q", cfg.Catalog.Primary)
	}
	if cfg.DailyPick.WindowCap != 300 {
		t.Errorf("unexpected default window cap %d", cfg.DailyPick.WindowCap)
	}
	if cfg.RateLimit.SweepThreshold != 1000 {
		t.Errorf("unexpected default sweep threshold %d", cfg.RateLimit.SweepThreshold)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"port too low":       func(c *Config) { c.Server.Port = 0 },
		"port too high":      func(c *Config) { c.Server.Port = 70000 },
		"unknown primary":    func(c *Config) { c.Catalog.Primary = "amazon" },
		"zero search limit":  func(c *Config) { c.RateLimit.Search.MaxRequests = 0 },
		"zero search window": func(c *Config) { c.RateLimit.Search.Window = 0 },
		"zero window cap":    func(c *Config) { c.DailyPick.WindowCap = 0 },
		"zero fan out":       func(c *Config) { c.Recommend.FanOut = 0 },
		"missing jwt secret": func(c *Config) { c.Auth.JWTSecret = "" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestAuthDisabledNeedsNoSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.Disabled = true
	cfg.Auth.JWTSecret = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled auth should not require a secret: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"BOOKSCOUT_SERVER_PORT":          "server.port",
		"BOOKSCOUT_CATALOG_PRIMARY":      "catalog.primary",
		"BOOKSCOUT_GOOGLE_BOOKS_API_KEY": "catalog.google_books.api_key",
		"BOOKSCOUT_AUTH_JWT_SECRET":      "auth.jwt_secret",
		"BOOKSCOUT_UNKNOWN_KNOB":         "",
	}
	for env, want := range cases {
		if got := envTransformFunc(env); got != want {
			t.Errorf("%s: got %q, want %q", env, got, want)
		}
	}
}

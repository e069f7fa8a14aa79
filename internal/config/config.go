// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package config provides layered configuration for BookScout using koanf:
// struct defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the BookScout server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Recommend RecommendConfig `koanf:"recommend"`
	DailyPick DailyPickConfig `koanf:"daily_pick"`
	Generator GeneratorConfig `koanf:"generator"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ProviderConfig holds settings for one upstream book catalog.
type ProviderConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond is the outbound budget toward this provider,
	// distinct from the caller-facing rate limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// CatalogConfig holds upstream catalog settings. Primary names the adapter
// tried first; the other becomes the fallback.
type CatalogConfig struct {
	Primary     string         `koanf:"primary"`
	GoogleBooks ProviderConfig `koanf:"google_books"`
	OpenLibrary ProviderConfig `koanf:"open_library"`
}

// CacheConfig holds cache-aside settings.
type CacheConfig struct {
	// Path is the Badger directory. Empty selects the in-memory store.
	Path string `koanf:"path"`

	// SearchTTL is the short TTL class covering raw search results.
	SearchTTL time.Duration `koanf:"search_ttl"`

	// SectionTTL is the long TTL class covering recommendation sections.
	SectionTTL time.Duration `koanf:"section_ttl"`
}

// EndpointLimit configures the fixed-window limiter for one endpoint class.
type EndpointLimit struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

// RateLimitConfig holds per-endpoint inbound admission limits.
type RateLimitConfig struct {
	Search         EndpointLimit `koanf:"search"`
	Recommend      EndpointLimit `koanf:"recommend"`
	AIBacked       EndpointLimit `koanf:"ai_backed"`
	SweepThreshold int           `koanf:"sweep_threshold"`
}

// RecommendConfig holds recommendation aggregation settings.
type RecommendConfig struct {
	MaxRecommendations int `koanf:"max_recommendations"`
	FavoritesCap       int `koanf:"favorites_cap"`
	MinSectionBooks    int `koanf:"min_section_books"`
	FanOut             int `koanf:"fan_out"`
	TrendingTerms      int `koanf:"trending_terms"`
}

// DailyPickConfig holds daily pick rotation settings.
type DailyPickConfig struct {
	Enabled bool `koanf:"enabled"`

	// WindowCap is the maximum number of retained pick records.
	WindowCap int `koanf:"window_cap"`

	// CheckInterval is how often the jobs service checks whether today's
	// pick exists. The trigger itself is idempotent.
	CheckInterval time.Duration `koanf:"check_interval"`

	// Seed seeds the selection source. 0 uses a time-based seed.
	Seed int64 `koanf:"seed"`

	// CuratedFile points at the operator-maintained JSON list of curated
	// candidate books. An unset or missing file leaves the pool empty, so
	// runs report no books available until one is provided.
	CuratedFile string `koanf:"curated_file"`
}

// GeneratorConfig holds settings for the external recommendation-text
// generator. The completion call itself is an external collaborator.
type GeneratorConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuthConfig holds caller-identity settings. Token issuance is external;
// BookScout only verifies the HMAC signature and reads the subject claim.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Disabled  bool   `koanf:"disabled"`
}

// Validate checks configuration invariants after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Catalog.Primary {
	case "google_books", "open_library":
	default:
		return fmt.Errorf("catalog.primary must be google_books or open_library, got %q", c.Catalog.Primary)
	}

	for _, l := range []struct {
		name  string
		limit EndpointLimit
	}{
		{"rate_limit.search", c.RateLimit.Search},
		{"rate_limit.recommend", c.RateLimit.Recommend},
		{"rate_limit.ai_backed", c.RateLimit.AIBacked},
	} {
		if l.limit.MaxRequests < 1 {
			return fmt.Errorf("%s.max_requests must be positive", l.name)
		}
		if l.limit.Window <= 0 {
			return fmt.Errorf("%s.window must be positive", l.name)
		}
	}

	if c.DailyPick.WindowCap < 1 {
		return fmt.Errorf("daily_pick.window_cap must be positive, got %d", c.DailyPick.WindowCap)
	}
	if c.Recommend.MinSectionBooks < 0 {
		return fmt.Errorf("recommend.min_section_books must not be negative")
	}
	if c.Recommend.FanOut < 1 {
		return fmt.Errorf("recommend.fan_out must be positive, got %d", c.Recommend.FanOut)
	}

	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.disabled is set")
	}

	return nil
}

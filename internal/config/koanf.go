// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bookscout/config.yaml",
	"/etc/bookscout/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces BookScout environment variables.
const envPrefix = "BOOKSCOUT_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8099,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			CORSAllowedOrigins: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Primary: "google_books",
			GoogleBooks: ProviderConfig{
				BaseURL:           "https://www.googleapis.com/books/v1",
				Timeout:           4 * time.Second,
				RequestsPerSecond: 2,
				Burst:             4,
			},
			OpenLibrary: ProviderConfig{
				BaseURL:           "https://openlibrary.org",
				Timeout:           4 * time.Second,
				RequestsPerSecond: 1,
				Burst:             2,
			},
		},
		Cache: CacheConfig{
			Path:       "/data/bookscout/cache",
			SearchTTL:  5 * time.Minute,
			SectionTTL: 6 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Search:         EndpointLimit{MaxRequests: 30, Window: time.Minute},
			Recommend:      EndpointLimit{MaxRequests: 15, Window: time.Minute},
			AIBacked:       EndpointLimit{MaxRequests: 5, Window: time.Minute},
			SweepThreshold: 1000,
		},
		Recommend: RecommendConfig{
			MaxRecommendations: 20,
			FavoritesCap:       10,
			MinSectionBooks:    5,
			FanOut:             4,
			TrendingTerms:      3,
		},
		DailyPick: DailyPickConfig{
			Enabled:       true,
			WindowCap:     300,
			CheckInterval: 10 * time.Minute,
			Seed:          0,
			CuratedFile:   "/data/bookscout/curated.json",
		},
		Generator: GeneratorConfig{
			BaseURL: "",
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Disabled: false,
		},
	}
}

// Load builds the effective configuration: defaults, then the first config
// file found (or CONFIG_PATH), then BOOKSCOUT_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file path, honoring CONFIG_PATH first.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to config paths.
//
// Examples:
//   - BOOKSCOUT_SERVER_PORT            -> server.port
//   - BOOKSCOUT_CATALOG_PRIMARY        -> catalog.primary
//   - BOOKSCOUT_GOOGLE_BOOKS_API_KEY   -> catalog.google_books.api_key
//   - BOOKSCOUT_AUTH_JWT_SECRET        -> auth.jwt_secret
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		"server_host":             "server.host",
		"server_port":             "server.port",
		"server_shutdown_timeout": "server.shutdown_timeout",
		"cors_allowed_origins":    "server.cors_allowed_origins",

		"log_level":  "logging.level",
		"log_format": "logging.format",

		"catalog_primary":          "catalog.primary",
		"google_books_url":         "catalog.google_books.base_url",
		"google_books_api_key":     "catalog.google_books.api_key",
		"google_books_timeout":     "catalog.google_books.timeout",
		"open_library_url":         "catalog.open_library.base_url",
		"open_library_timeout":     "catalog.open_library.timeout",

		"cache_path":        "cache.path",
		"cache_search_ttl":  "cache.search_ttl",
		"cache_section_ttl": "cache.section_ttl",

		"rate_limit_search_max":    "rate_limit.search.max_requests",
		"rate_limit_search_window": "rate_limit.search.window",
		"rate_limit_ai_max":        "rate_limit.ai_backed.max_requests",
		"rate_limit_ai_window":     "rate_limit.ai_backed.window",
		"rate_limit_recommend_max": "rate_limit.recommend.max_requests",

		"daily_pick_enabled":      "daily_pick.enabled",
		"daily_pick_window_cap":   "daily_pick.window_cap",
		"daily_pick_seed":         "daily_pick.seed",
		"daily_pick_curated_file": "daily_pick.curated_file",

		"generator_url":     "generator.base_url",
		"generator_api_key": "generator.api_key",
		"generator_model":   "generator.model",

		"auth_jwt_secret": "auth.jwt_secret",
		"auth_disabled":   "auth.disabled",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

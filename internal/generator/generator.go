// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package generator defines the external recommendation-text generator
// collaborator. Prompt construction and the completion call itself are not
// part of the orchestration core; search and recommend consume only the
// TitleSuggester interface so tests inject fakes.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TitleSuggester resolves free-form text into concrete book title strings.
type TitleSuggester interface {
	// SuggestTitles returns up to max candidate titles for the prompt.
	// An error means the generator collaborator is unavailable; callers
	// treat that like any other provider failure.
	SuggestTitles(ctx context.Context, prompt string, max int) ([]string, error)
}

// Config holds settings for the HTTP-backed suggester.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint and parses
// one title per response line.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates the HTTP-backed title suggester.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SuggestTitles implements TitleSuggester.
func (c *Client) SuggestTitles(ctx context.Context, prompt string, max int) ([]string, error) {
	if max < 1 {
		max = 1
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You recommend books. Reply with up to %d real book titles, one per line, no numbering, no commentary.",
					max),
			},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("generator status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("generator returned no choices")
	}

	return ParseTitles(parsed.Choices[0].Message.Content, max), nil
}

// ParseTitles extracts clean title strings from generator output, one per
// line, tolerating list markers and surrounding quotes.
func ParseTitles(content string, max int) []string {
	titles := make([]string, 0, max)
	for _, line := range strings.Split(content, "\n") {
		title := strings.TrimSpace(line)
		title = strings.TrimLeft(title, "-*0123456789. ")
		title = strings.Trim(title, `"'`)
		if title == "" {
			continue
		}
		titles = append(titles, title)
		if len(titles) == max {
			break
		}
	}
	return titles
}

// StaticSuggester returns a fixed title list. Used in tests and as a
// stand-in when no generator endpoint is configured.
type StaticSuggester struct {
	Titles []string
	Err    error
}

// SuggestTitles implements TitleSuggester.
func (s *StaticSuggester) SuggestTitles(_ context.Context, _ string, max int) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Titles) > max {
		return s.Titles[:max], nil
	}
	return s.Titles, nil
}

var (
	_ TitleSuggester = (*Client)(nil)
	_ TitleSuggester = (*StaticSuggester)(nil)
)

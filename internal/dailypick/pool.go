// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package dailypick

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/bookscout-dev/bookscout/internal/catalog"
)

// Pool supplies the curated candidate set the scheduler picks from.
type Pool interface {
	Books(ctx context.Context) ([]catalog.NormalizedBook, error)
}

// StaticPool serves a fixed candidate list.
type StaticPool []catalog.NormalizedBook

// Books returns the pool contents.
func (p StaticPool) Books(_ context.Context) ([]catalog.NormalizedBook, error) {
	return p, nil
}

// FilePool loads the curated list from a JSON file of NormalizedBook
// records. The file is operator-maintained and read once at startup.
type FilePool struct {
	books []catalog.NormalizedBook
}

// LoadFilePool reads and validates the curated list at path.
func LoadFilePool(path string) (*FilePool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curated pool %s: %w", path, err)
	}
	var books []catalog.NormalizedBook
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("parse curated pool %s: %w", path, err)
	}
	for i, book := range books {
		if book.ID == "" || book.Title == "" {
			return nil, fmt.Errorf("curated pool %s: entry %d missing id or title", path, i)
		}
	}
	return &FilePool{books: books}, nil
}

// Books returns the loaded candidate list.
func (p *FilePool) Books(_ context.Context) ([]catalog.NormalizedBook, error) {
	return p.books, nil
}

var (
	_ Pool = (StaticPool)(nil)
	_ Pool = (*FilePool)(nil)
)

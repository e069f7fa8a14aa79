// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// FavoritesSource resolves a caller's stored favorite records.
type FavoritesSource interface {
	FavoritesFor(ctx context.Context, userID string) ([]Favorite, error)
	SaveFavorites(ctx context.Context, userID string, favorites []Favorite) error
}

const favoritesKeyPrefix = "favorites:"

// BadgerFavorites persists per-user favorite lists as JSON documents.
type BadgerFavorites struct {
	db *badger.DB
}

// NewBadgerFavorites wraps an open Badger handle without taking ownership.
func NewBadgerFavorites(db *badger.DB) *BadgerFavorites {
	return &BadgerFavorites{db: db}
}

// FavoritesFor returns the user's stored favorites, or an empty list when
// none have been saved.
func (s *BadgerFavorites) FavoritesFor(_ context.Context, userID string) ([]Favorite, error) {
	var favorites []Favorite
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(favoritesKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &favorites)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load favorites for %s: %w", userID, err)
	}
	return favorites, nil
}

// SaveFavorites replaces the user's favorite list.
func (s *BadgerFavorites) SaveFavorites(_ context.Context, userID string, favorites []Favorite) error {
	data, err := json.Marshal(favorites)
	if err != nil {
		return fmt.Errorf("encode favorites for %s: %w", userID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(favoritesKeyPrefix+userID), data)
	})
	if err != nil {
		return fmt.Errorf("store favorites for %s: %w", userID, err)
	}
	return nil
}

// MemoryFavorites is an in-process FavoritesSource for tests.
type MemoryFavorites struct {
	mu    sync.RWMutex
	users map[string][]Favorite
}

// NewMemoryFavorites returns an empty in-memory source.
func NewMemoryFavorites() *MemoryFavorites {
	return &MemoryFavorites{users: make(map[string][]Favorite)}
}

// FavoritesFor returns the user's favorites.
func (s *MemoryFavorites) FavoritesFor(_ context.Context, userID string) ([]Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Favorite(nil), s.users[userID]...), nil
}

// SaveFavorites replaces the user's favorite list.
func (s *MemoryFavorites) SaveFavorites(_ context.Context, userID string, favorites []Favorite) error {
	s.mu.Lock()
	s.users[userID] = append([]Favorite(nil), favorites...)
	s.mu.Unlock()
	return nil
}

var (
	_ FavoritesSource = (*BadgerFavorites)(nil)
	_ FavoritesSource = (*MemoryFavorites)(nil)
)

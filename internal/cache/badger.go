// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB, giving cache entries
// persistence across restarts. Badger handles TTL expiry natively.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStoreWithDB wraps an existing Badger handle. The caller retains
// ownership of the handle; Close is a no-op.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return value, true, nil
}

// Set implements Store.
func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Close implements Store. The shared Badger handle is owned and closed by
// whoever opened it, so this does nothing.
func (s *BadgerStore) Close() error {
	return nil
}

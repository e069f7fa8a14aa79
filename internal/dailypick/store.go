// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

package dailypick

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrAlreadyPicked signals that a record for the date already exists. The
// scheduler translates it into the idempotent already_exists outcome.
var ErrAlreadyPicked = errors.New("daily pick already recorded for date")

const recordKeyPrefix = "dailypick:"

// Store persists the rotation window in Badger. Date keys sort
// lexicographically in calendar order, so the first key under the prefix is
// always the oldest record.
type Store struct {
	db *badger.DB
}

// NewStore wraps an open Badger handle without taking ownership.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Insert writes record inside a single transaction: it fails with
// ErrAlreadyPicked when the date key exists, and evicts the oldest record
// first when the window already holds windowCap entries. Two concurrent
// inserts for the same date cannot both succeed.
func (s *Store) Insert(_ context.Context, record Record, windowCap int) error {
	key := []byte(recordKeyPrefix + record.Date)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode daily pick record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		if getErr == nil {
			return ErrAlreadyPicked
		}
		if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return getErr
		}

		if windowCap > 0 {
			oldest, count, scanErr := scanWindow(txn)
			if scanErr != nil {
				return scanErr
			}
			if count >= windowCap && oldest != "" {
				if delErr := txn.Delete([]byte(recordKeyPrefix + oldest)); delErr != nil {
					return delErr
				}
			}
		}
		return txn.Set(key, data)
	})
	if err != nil {
		// Badger retries are the caller's concern only for conflicts;
		// a conflict here means another trigger won the date key.
		if errors.Is(err, badger.ErrConflict) {
			return ErrAlreadyPicked
		}
		return err
	}
	return nil
}

// Get returns the record for date, or ok=false when none exists.
func (s *Store) Get(_ context.Context, date string) (Record, bool, error) {
	var record Record
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + date))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("read daily pick %s: %w", date, err)
	}
	return record, found, nil
}

// All returns every record in the window, oldest first.
func (s *Store) All(_ context.Context) ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var record Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily pick window: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// Count returns the number of records in the window.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count daily pick window: %w", err)
	}
	return count, nil
}

// scanWindow finds the oldest date and the record count inside txn.
func scanWindow(txn *badger.Txn) (oldest string, count int, err error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recordKeyPrefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		date := strings.TrimPrefix(string(it.Item().Key()), recordKeyPrefix)
		if oldest == "" || date < oldest {
			oldest = date
		}
		count++
	}
	return oldest, count, nil
}

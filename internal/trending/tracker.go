// BookScout - Book Discovery Orchestration Service
// Copyright 2026 BookScout Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookscout-dev/bookscout

// Package trending counts search terms so the recommendation aggregator can
// backfill thin result sets with terms other callers searched for recently.
package trending

import (
	"context"
	"encoding/binary"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Term is a search term with its observed hit count.
type Term struct {
	Term  string
	Count uint64
}

// Tracker records search terms and reports the most frequent ones.
// Implementations are safe for concurrent use.
type Tracker interface {
	Record(ctx context.Context, term string) error
	Top(ctx context.Context, n int) ([]Term, error)
}

const (
	keyPrefix = "trending:"

	// Counts expire so yesterday's fads age out on their own.
	countTTL = 7 * 24 * time.Hour
)

// normalizeTerm collapses casing and whitespace so "Dune " and "dune"
// count as one term. Empty results are not tracked.
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// BadgerTracker persists per-term counters in Badger under a shared prefix.
type BadgerTracker struct {
	db *badger.DB
}

// NewBadgerTracker wraps an open Badger handle. The tracker does not own
// the handle and never closes it.
func NewBadgerTracker(db *badger.DB) *BadgerTracker {
	return &BadgerTracker{db: db}
}

// Record increments the counter for term, creating it on first sight.
func (t *BadgerTracker) Record(_ context.Context, term string) error {
	term = normalizeTerm(term)
	if term == "" {
		return nil
	}
	key := []byte(keyPrefix + term)
	return t.db.Update(func(txn *badger.Txn) error {
		var count uint64
		item, err := txn.Get(key)
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				count = decodeCount(val)
				return nil
			})
			if err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// first observation
		default:
			return err
		}
		entry := badger.NewEntry(key, encodeCount(count+1)).WithTTL(countTTL)
		return txn.SetEntry(entry)
	})
}

// Top returns up to n terms ordered by descending count. Ties break
// alphabetically so the ordering is stable across calls.
func (t *BadgerTracker) Top(_ context.Context, n int) ([]Term, error) {
	if n <= 0 {
		return nil, nil
	}
	var terms []Term
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), keyPrefix)
			err := item.Value(func(val []byte) error {
				terms = append(terms, Term{Term: name, Count: decodeCount(val)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTerms(terms)
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms, nil
}

// MemoryTracker is an in-process Tracker for tests and cache-less deployments.
type MemoryTracker struct {
	mu     sync.RWMutex
	counts map[string]uint64
}

// NewMemoryTracker returns an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[string]uint64)}
}

// Record increments the counter for term.
func (t *MemoryTracker) Record(_ context.Context, term string) error {
	term = normalizeTerm(term)
	if term == "" {
		return nil
	}
	t.mu.Lock()
	t.counts[term]++
	t.mu.Unlock()
	return nil
}

// Top returns up to n terms ordered by descending count.
func (t *MemoryTracker) Top(_ context.Context, n int) ([]Term, error) {
	if n <= 0 {
		return nil, nil
	}
	t.mu.RLock()
	terms := make([]Term, 0, len(t.counts))
	for name, count := range t.counts {
		terms = append(terms, Term{Term: name, Count: count})
	}
	t.mu.RUnlock()
	sortTerms(terms)
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms, nil
}

func sortTerms(terms []Term) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}

func encodeCount(count uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return buf
}

func decodeCount(val []byte) uint64 {
	if len(val) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(val)
}

var (
	_ Tracker = (*BadgerTracker)(nil)
	_ Tracker = (*MemoryTracker)(nil)
)

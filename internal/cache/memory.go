// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// MemStore keeps entries in memory only. It backs --no-cache runs and tests.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	o := buildOptions(opts)
	return &MemStore{entries: make(map[string]Entry), now: o.now}
}

func (s *MemStore) Get(_ context.Context, fingerprint string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()
	if !ok || e.Expired(s.now()) {
		return Entry{}, false, nil
	}
	e.Record = e.Record.Clone()
	return e, true, nil
}

func (s *MemStore) Put(_ context.Context, fingerprint string, rec *types.BibliographicRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = Entry{
		Fingerprint: fingerprint,
		Record:      rec.Clone(),
		FetchedAt:   s.now(),
		TTL:         ttl,
	}
	return nil
}

func (s *MemStore) Flush() error { return nil }
func (s *MemStore) Close() error { return nil }

func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statsOf(s.entries, s.now()), nil
}

func (s *MemStore) Prune(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pruneMap(s.entries, s.now()), nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

func statsOf(entries map[string]Entry, now time.Time) Stats {
	st := Stats{Entries: len(entries)}
	for _, e := range entries {
		if e.Record == nil {
			st.Negative++
		}
		if e.Expired(now) {
			st.Expired++
		}
	}
	return st
}

func pruneMap(entries map[string]Entry, now time.Time) int {
	n := 0
	for fp, e := range entries {
		if e.Expired(now) {
			delete(entries, fp)
			n++
		}
	}
	return n
}

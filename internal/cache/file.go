// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// fileEntry is the on-disk shape of one cache entry. Unknown fields in the
// file are ignored so newer writers stay readable.
type fileEntry struct {
	Record     *types.BibliographicRecord `json:"record"`
	FetchedAt  time.Time                  `json:"fetched_at"`
	TTLSeconds int64                      `json:"ttl_seconds"`
}

// FileStore is a JSON-file cache. Entries are held in memory and written
// back atomically by Flush and Close.
type FileStore struct {
	path string
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool
	corrupt bool
}

// OpenFile loads the cache at path. A missing file yields an empty cache.
// An unreadable file also yields an empty cache, logged as a warning; the
// damaged file is kept alongside as <path>.corrupt on the next flush.
func OpenFile(path string, log zerolog.Logger, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	s := &FileStore{
		path:    path,
		log:     log.With().Str("component", "cache").Str("path", path).Logger(),
		now:     o.now,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", path, err)
	}

	var raw map[string]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn().Err(err).Msg("cache file is corrupt, starting with an empty cache")
		s.corrupt = true
		return s, nil
	}
	for fp, fe := range raw {
		s.entries[fp] = Entry{
			Fingerprint: fp,
			Record:      fe.Record,
			FetchedAt:   fe.FetchedAt,
			TTL:         time.Duration(fe.TTLSeconds) * time.Second,
		}
	}
	s.log.Debug().Int("entries", len(s.entries)).Msg("cache loaded")
	return s, nil
}

// Corrupt reports whether the file could not be parsed when opened.
func (s *FileStore) Corrupt() bool {
	return s.corrupt
}

func (s *FileStore) Get(_ context.Context, fingerprint string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()
	if !ok || e.Expired(s.now()) {
		return Entry{}, false, nil
	}
	e.Record = e.Record.Clone()
	return e, true, nil
}

func (s *FileStore) Put(_ context.Context, fingerprint string, rec *types.BibliographicRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = Entry{
		Fingerprint: fingerprint,
		Record:      rec.Clone(),
		FetchedAt:   s.now().UTC(),
		TTL:         wholeSeconds(ttl),
	}
	s.dirty = true
	return nil
}

// wholeSeconds rounds a positive TTL up to the second the file format
// stores, so a short TTL never becomes 0 (never expire).
func wholeSeconds(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return (ttl + time.Second - 1).Truncate(time.Second)
}

// Flush writes pending changes to disk using a temporary file and rename.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	raw := make(map[string]fileEntry, len(s.entries))
	for fp, e := range s.entries {
		raw[fp] = fileEntry{
			Record:     e.Record,
			FetchedAt:  e.FetchedAt,
			TTLSeconds: int64(e.TTL / time.Second),
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if s.corrupt {
		if err := os.Rename(s.path, s.path+".corrupt"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Msg("could not preserve corrupt cache file")
		}
		s.corrupt = false
	}

	tmpFile, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	s.dirty = false
	return nil
}

// Close flushes pending changes.
func (s *FileStore) Close() error {
	return s.Flush()
}

func (s *FileStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statsOf(s.entries, s.now()), nil
}

func (s *FileStore) Prune(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := pruneMap(s.entries, s.now())
	if n > 0 {
		s.dirty = true
	}
	return n, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	s.dirty = true
	return nil
}

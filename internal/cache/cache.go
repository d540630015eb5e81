// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores resolution results keyed by query fingerprint. Found
// and not-found results are cached alike and expire lazily after their TTL.
// Three backends share the Store interface: an in-memory map, a JSON file
// and a SQLite database.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// Default lifetimes for found and not-found results.
const (
	DefaultTTL         = 30 * 24 * time.Hour
	DefaultNegativeTTL = 24 * time.Hour
)

// Entry is one cached resolution. A nil Record records a not-found result.
type Entry struct {
	Fingerprint string
	Record      *types.BibliographicRecord
	FetchedAt   time.Time
	TTL         time.Duration
}

// Expired reports whether the entry is older than its TTL at now. A zero TTL
// never expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.FetchedAt) > e.TTL
}

// Store is a fingerprint-addressed result cache. Implementations are safe
// for concurrent use. Get never returns expired entries. Put overwrites any
// existing entry for the fingerprint.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Entry, bool, error)
	Put(ctx context.Context, fingerprint string, rec *types.BibliographicRecord, ttl time.Duration) error
	Flush() error
	Close() error
}

// Stats summarizes cache contents.
type Stats struct {
	Entries  int `json:"entries" yaml:"entries"`
	Negative int `json:"negative" yaml:"negative"`
	Expired  int `json:"expired" yaml:"expired"`
}

// Admin is implemented by stores that support maintenance commands.
type Admin interface {
	Stats(ctx context.Context) (Stats, error)
	Prune(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, letting tests control expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fingerprint returns the stable cache key of a query: the hex SHA-256 of
// its case- and whitespace-folded text, DOI and year, plus the arXiv id
// when one is set.
func Fingerprint(q types.Query) string {
	text := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	doi := strings.ToLower(strings.TrimSpace(q.DOI))
	key := text + "|" + doi + "|" + strconv.Itoa(q.Year)
	if id := strings.ToLower(strings.TrimSpace(q.ArxivID)); id != "" {
		key += "|arxiv:" + id
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Open constructs the store selected by cfg.Backend.
func Open(cfg types.CacheConfig, log zerolog.Logger, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case "", types.CacheJSON:
		return OpenFile(cfg.Path, log, opts...)
	case types.CacheSQLite:
		return OpenSQLite(cfg.Path, log, opts...)
	case types.CacheMemory:
		return NewMemStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

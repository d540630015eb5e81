// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/pkg/types"
)

const cacheTable = "cache_entries"

// SQLiteStore is a write-through cache in a SQLite database. Expiry times
// are stored alongside each entry so Prune can run as a single DELETE.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// OpenSQLite opens or creates the cache database at path. A file that is
// not a readable SQLite database is moved aside to <path>.corrupt and a
// fresh database is created in its place.
func OpenSQLite(path string, log zerolog.Logger, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	log = log.With().Str("component", "cache").Str("path", path).Logger()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s, err := openSQLite(path, log, o)
	if err == nil {
		return s, nil
	}
	if !isCorrupt(err) {
		return nil, err
	}

	log.Warn().Err(err).Msg("cache database is corrupt, starting with an empty cache")
	if err := os.Rename(path, path+".corrupt"); err != nil {
		return nil, fmt.Errorf("moving corrupt cache aside: %w", err)
	}
	return openSQLite(path, log, o)
}

func openSQLite(path string, log zerolog.Logger, o options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{db: db, log: log, now: o.now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
	}
	return false
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			fingerprint TEXT PRIMARY KEY,
			record TEXT,
			fetched_at INTEGER NOT NULL,
			ttl_ns INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	var (
		record    sql.NullString
		fetchedAt int64
		ttl       int64
	)
	err := sq.Select("record", "fetched_at", "ttl_ns").
		From(cacheTable).
		Where(sq.Eq{"fingerprint": fingerprint}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&record, &fetchedAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}

	e := Entry{
		Fingerprint: fingerprint,
		FetchedAt:   time.Unix(0, fetchedAt).UTC(),
		TTL:         time.Duration(ttl),
	}
	if e.Expired(s.now()) {
		return Entry{}, false, nil
	}
	if record.Valid {
		var rec types.BibliographicRecord
		if err := json.Unmarshal([]byte(record.String), &rec); err != nil {
			s.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("ignoring unreadable cache entry")
			return Entry{}, false, nil
		}
		e.Record = &rec
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, fingerprint string, rec *types.BibliographicRecord, ttl time.Duration) error {
	var record sql.NullString
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		record = sql.NullString{String: string(data), Valid: true}
	}

	now := s.now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}

	_, err := sq.Replace(cacheTable).
		Columns("fingerprint", "record", "fetched_at", "ttl_ns", "expires_at").
		Values(fingerprint, record, now.UnixNano(), int64(ttl), expiresAt).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Flush is a no-op; every Put is already durable.
func (s *SQLiteStore) Flush() error { return nil }

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		dest *int
		b    sq.SelectBuilder
	}{
		{&st.Entries, sq.Select("COUNT(*)").From(cacheTable)},
		{&st.Negative, sq.Select("COUNT(*)").From(cacheTable).Where(sq.Eq{"record": nil})},
		{&st.Expired, sq.Select("COUNT(*)").From(cacheTable).Where(s.expiredPred())},
	}
	for _, q := range queries {
		if err := q.b.RunWith(s.db).QueryRowContext(ctx).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("counting cache entries: %w", err)
		}
	}
	return st, nil
}

func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	res, err := sq.Delete(cacheTable).Where(s.expiredPred()).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := sq.Delete(cacheTable).RunWith(s.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) expiredPred() sq.Sqlizer {
	return sq.And{sq.Gt{"expires_at": 0}, sq.Lt{"expires_at": s.now().UnixNano()}}
}

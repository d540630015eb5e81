// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibresolve/pkg/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func widgetRecord() *types.BibliographicRecord {
	return &types.BibliographicRecord{
		Title:   "A Study of Widgets",
		Authors: []types.Author{{Family: "Smith", Given: "J."}},
		Year:    2020,
		Venue:   "Journal of Widgets",
		Type:    types.EntryArticle,
		Pages:   "10--20",
	}
}

// backends returns a constructor per backend sharing one clock.
func backends(t *testing.T) map[string]func(clk *fakeClock) Store {
	return map[string]func(clk *fakeClock) Store{
		"memory": func(clk *fakeClock) Store {
			return NewMemStore(WithClock(clk.Now))
		},
		"file": func(clk *fakeClock) Store {
			s, err := OpenFile(filepath.Join(t.TempDir(), "cache.json"), zerolog.Nop(), WithClock(clk.Now))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(clk *fakeClock) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop(), WithClock(clk.Now))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clk := newClock()
			s := open(clk)
			defer s.Close()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			// Found records round-trip.
			require.NoError(t, s.Put(ctx, "fp1", widgetRecord(), time.Hour))
			e, ok, err := s.Get(ctx, "fp1")
			require.NoError(t, err)
			require.True(t, ok)
			if diff := cmp.Diff(widgetRecord(), e.Record); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, time.Hour, e.TTL)

			// Put overwrites rather than duplicates.
			updated := widgetRecord()
			updated.DOI = "10.1000/widgets"
			require.NoError(t, s.Put(ctx, "fp1", updated, time.Hour))
			e, ok, err = s.Get(ctx, "fp1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "10.1000/widgets", e.Record.DOI)

			// Not-found results are cached like found ones.
			require.NoError(t, s.Put(ctx, "fp2", nil, 2*time.Hour))
			e, ok, err = s.Get(ctx, "fp2")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Nil(t, e.Record)

			admin := s.(Admin)
			st, err := admin.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Entries: 2, Negative: 1}, st)

			// Lazy expiry: fp1 is older than its TTL, fp2 is not.
			clk.Advance(90 * time.Minute)
			_, ok, err = s.Get(ctx, "fp1")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = s.Get(ctx, "fp2")
			require.NoError(t, err)
			assert.True(t, ok)

			st, err = admin.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Entries: 2, Negative: 1, Expired: 1}, st)

			n, err := admin.Prune(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			require.NoError(t, admin.Clear(ctx))
			st, err = admin.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, st.Entries)
		})
	}
}

func TestStoreZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clk := newClock()
			s := open(clk)
			defer s.Close()

			require.NoError(t, s.Put(ctx, "fp", widgetRecord(), 0))
			clk.Advance(10 * 365 * 24 * time.Hour)
			_, ok, err := s.Get(ctx, "fp")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Put(ctx, "fp", widgetRecord(), time.Hour))

	e, _, _ := s.Get(ctx, "fp")
	e.Record.Title = "mutated"
	e.Record.Authors[0].Family = "mutated"

	again, _, _ := s.Get(ctx, "fp")
	assert.Equal(t, "A Study of Widgets", again.Record.Title)
	assert.Equal(t, "Smith", again.Record.Authors[0].Family)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "cache.json")

	s, err := OpenFile(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "fp", widgetRecord(), 24*time.Hour))
	require.NoError(t, s.Put(ctx, "neg", nil, time.Hour))
	require.NoError(t, s.Close())

	reopened, err := OpenFile(path, zerolog.Nop())
	require.NoError(t, err)
	e, ok, err := reopened.Get(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A Study of Widgets", e.Record.Title)
	assert.Equal(t, 24*time.Hour, e.TTL)

	e, ok, err = reopened.Get(ctx, "neg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, e.Record)
}

func TestStoreSubSecondTTLExpires(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clk := newClock()
			s := open(clk)
			defer s.Close()

			require.NoError(t, s.Put(ctx, "fp", widgetRecord(), 500*time.Millisecond))
			clk.Advance(2 * time.Second)
			_, ok, err := s.Get(ctx, "fp")
			require.NoError(t, err)
			assert.False(t, ok, "a short TTL must not turn into never-expire")
		})
	}
}

func TestFileStoreRoundsTTLUp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	clk := newClock()

	s, err := OpenFile(path, zerolog.Nop(), WithClock(clk.Now))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "fp", widgetRecord(), 1500*time.Millisecond))
	require.NoError(t, s.Close())

	reopened, err := OpenFile(path, zerolog.Nop(), WithClock(clk.Now))
	require.NoError(t, err)
	e, ok, err := reopened.Get(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, e.TTL)

	clk.Advance(3 * time.Second)
	_, ok, err = reopened.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	data := `{
  "fp": {
    "record": {"title": "Widgets", "authors": [{"family": "Smith"}], "type": "article", "future_field": 1},
    "fetched_at": "2026-03-01T12:00:00Z",
    "ttl_seconds": 3600,
    "schema_version": 2
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	clk := newClock()
	s, err := OpenFile(path, zerolog.Nop(), WithClock(clk.Now))
	require.NoError(t, err)
	e, ok, err := s.Get(context.Background(), "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Widgets", e.Record.Title)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := OpenFile(path, zerolog.Nop())
	require.NoError(t, err, "a corrupt cache must never be fatal")
	assert.True(t, s.Corrupt())

	_, ok, err := s.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(context.Background(), "fp", widgetRecord(), time.Hour))
	require.NoError(t, s.Close())

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))

	reopened, err := OpenFile(path, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, reopened.Corrupt())
}

func TestSQLiteStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	s, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), "fp", widgetRecord(), time.Hour))
	_, ok, err := s.Get(context.Background(), "fp")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(types.CacheConfig{Backend: types.CacheMemory}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	s, err = Open(types.CacheConfig{Path: filepath.Join(dir, "c.json")}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(types.CacheConfig{Backend: types.CacheSQLite, Path: filepath.Join(dir, "c.db")}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(types.CacheConfig{Backend: "redis"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown cache backend")
}

func TestFingerprintFolding(t *testing.T) {
	a := Fingerprint(types.Query{Text: "A Study  of\tWidgets", Year: 2020})
	b := Fingerprint(types.Query{Text: " a study of widgets ", Year: 2020})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Fingerprint(types.Query{Text: "A Study of Widgets", Year: 2021}))
	assert.NotEqual(t, a, Fingerprint(types.Query{Text: "A Study of Widgets", Year: 2020, DOI: "10.1/x"}))
	assert.Equal(t,
		Fingerprint(types.Query{Text: "x", DOI: "10.1/ABC"}),
		Fingerprint(types.Query{Text: "x", DOI: "10.1/abc"}))
}

func TestFingerprintArxivID(t *testing.T) {
	a := Fingerprint(types.Query{ArxivID: "2301.07041"})
	b := Fingerprint(types.Query{ArxivID: "2302.01234"})
	assert.NotEqual(t, a, b, "id-only queries must not share a key")
	assert.NotEqual(t, Fingerprint(types.Query{}), a)
	assert.Equal(t, a, Fingerprint(types.Query{ArxivID: " 2301.07041 "}))
	assert.Equal(t,
		Fingerprint(types.Query{ArxivID: "math.GT/0309136"}),
		Fingerprint(types.Query{ArxivID: "math.gt/0309136"}))
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var km KeyedMutex
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, km.locks, "released keys are removed")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var km KeyedMutex
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve drives reference entries through the cache and the
// provider chain. Each entry is looked up in the cache first; on a miss the
// providers are tried in priority order with bounded retries, and the final
// result (found or not) is written back. Entries run on a bounded worker
// pool while calls to exclusive providers are funneled through one lane.
package resolve

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bibresolve/internal/cache"
	"github.com/pdiddy/bibresolve/internal/extract"
	"github.com/pdiddy/bibresolve/internal/httputil"
	"github.com/pdiddy/bibresolve/internal/metrics"
	"github.com/pdiddy/bibresolve/internal/provider"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// Status is the final state of one entry.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"

	// StatusSkipped marks an entry interrupted by cancellation. Nothing
	// was cached for it, so a resumed run processes it again.
	StatusSkipped Status = "skipped"
)

// SourceCache is the Result.Source of entries answered from the cache.
const SourceCache = "cache"

// Result pairs an entry with its resolution.
type Result struct {
	Entry  types.ReferenceEntry
	Record *types.BibliographicRecord
	Status Status

	// Source names the provider that found the record, or SourceCache.
	Source string

	// Calls counts provider invocations made for this entry, retries
	// included. Cache hits make none.
	Calls int

	// Err is the last provider error seen, kept for reporting. It is not a
	// failure of the run.
	Err error
}

// RunOptions bounds one ResolveAll call.
type RunOptions struct {
	// StartIndex skips every entry with a lower Index without consulting
	// the cache.
	StartIndex int

	// MaxEntries caps the entries processed, counted from StartIndex.
	// Zero means no cap.
	MaxEntries int

	// ForceRefresh ignores cached results. Fresh results are still stored.
	ForceRefresh bool

	// OnResult, when set, is called once per finished entry. Calls are
	// serialized but arrive in completion order.
	OnResult func(Result)
}

// Options configures a Resolver.
type Options struct {
	// Workers bounds the entries resolved concurrently. Values below 1
	// mean 1.
	Workers int

	Backoff httputil.Backoff

	// TTL applies to found records and NegativeTTL to not-found results.
	TTL         time.Duration
	NegativeTTL time.Duration

	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Resolver resolves entries against a cache and an ordered provider chain.
type Resolver struct {
	chain   []provider.Provider
	store   cache.Store
	keys    cache.KeyedMutex
	workers int
	backoff httputil.Backoff
	ttl     time.Duration
	negTTL  time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New returns a Resolver over chain, which is tried in order.
func New(chain []provider.Provider, store cache.Store, opts Options) *Resolver {
	if opts.Backoff.MaxAttempts < 1 {
		opts.Backoff = httputil.DefaultBackoff()
	}
	return &Resolver{
		chain:   chain,
		store:   store,
		workers: max(opts.Workers, 1),
		backoff: opts.Backoff,
		ttl:     opts.TTL,
		negTTL:  opts.NegativeTTL,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
}

// ResolveAll resolves the entries selected by opts and returns their
// results ordered by Index. When ctx is cancelled, no new entries start,
// in-flight entries finish as StatusSkipped, and ctx.Err() is returned
// together with the results gathered so far.
func (r *Resolver) ResolveAll(ctx context.Context, entries iter.Seq[types.ReferenceEntry], opts RunOptions) ([]Result, error) {
	chain, closeLanes := r.runChain()
	defer closeLanes()

	var (
		mu      sync.Mutex
		results []Result
		g       errgroup.Group
	)
	g.SetLimit(r.workers)

	processed := 0
	for e := range entries {
		if e.Index < opts.StartIndex {
			continue
		}
		if opts.MaxEntries > 0 && processed >= opts.MaxEntries {
			break
		}
		if ctx.Err() != nil {
			break
		}
		processed++

		g.Go(func() error {
			res := r.resolveEntry(ctx, chain, e, opts.ForceRefresh)
			r.metrics.RecordEntry(string(res.Status))

			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			if opts.OnResult != nil {
				opts.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait() // per-entry failures are carried in Result

	slices.SortFunc(results, func(a, b Result) int {
		return a.Entry.Index - b.Entry.Index
	})
	return results, ctx.Err()
}

// runChain wraps exclusive providers in lanes that live for one run.
func (r *Resolver) runChain() ([]provider.Provider, func()) {
	chain := make([]provider.Provider, len(r.chain))
	var lanes []*lane
	for i, p := range r.chain {
		if provider.IsExclusive(p) {
			l := newLane(p)
			lanes = append(lanes, l)
			chain[i] = l
			continue
		}
		chain[i] = p
	}
	return chain, func() {
		for _, l := range lanes {
			l.close()
		}
	}
}

func (r *Resolver) resolveEntry(ctx context.Context, chain []provider.Provider, e types.ReferenceEntry, force bool) Result {
	q := extract.NewQuery(e)
	fp := cache.Fingerprint(q)
	log := r.log.With().Int("index", e.Index).Logger()

	unlock := r.keys.Lock(fp)
	defer unlock()

	res := Result{Entry: e, Status: StatusUnresolved}
	if err := ctx.Err(); err != nil {
		res.Status = StatusSkipped
		res.Err = err
		return res
	}

	if !force {
		entry, ok, err := r.store.Get(ctx, fp)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("cache read failed, resolving anyway")
		case ok:
			r.metrics.RecordCacheLookup(true)
			res.Source = SourceCache
			if entry.Record != nil {
				res.Record = entry.Record
				res.Status = StatusResolved
			}
			log.Debug().Str("status", string(res.Status)).Msg("cache hit")
			return res
		default:
			r.metrics.RecordCacheLookup(false)
		}
	}

	for _, p := range chain {
		out, calls := r.tryProvider(ctx, p, q, log)
		res.Calls += calls
		if out.Kind == provider.OutcomeFound {
			res.Record = out.Record
			res.Status = StatusResolved
			res.Source = p.Name()
			r.put(ctx, fp, out.Record, r.ttl, log)
			return res
		}
		if out.Err != nil {
			res.Err = out.Err
		}
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		res.Status = StatusSkipped
		res.Err = ctx.Err()
		return res
	}
	log.Info().Str("text", q.Text).Msg("unresolved after all providers")
	r.put(ctx, fp, nil, r.negTTL, log)
	return res
}

// tryProvider calls p until decide says accept or next, sleeping between
// retries. It returns the last outcome and the number of calls made.
func (r *Resolver) tryProvider(ctx context.Context, p provider.Provider, q types.Query, log zerolog.Logger) (provider.Outcome, int) {
	for attempt := 1; ; attempt++ {
		start := time.Now()
		out := p.Resolve(ctx, q)
		r.metrics.RecordProviderCall(p.Name(), outcomeLabel(out), time.Since(start).Seconds())

		switch decide(out, attempt, r.backoff) {
		case actionAccept:
			log.Debug().Str("provider", p.Name()).Int("attempt", attempt).Msg("found")
			return out, attempt
		case actionRetry:
			d := retryDelay(out, attempt, r.backoff)
			log.Warn().Str("provider", p.Name()).Str("error", string(out.Err.Kind)).
				Int("attempt", attempt).Dur("delay", d).Msg("retrying")
			r.metrics.RecordRetry(p.Name())
			if err := httputil.Sleep(ctx, d); err != nil {
				return out, attempt
			}
		default:
			if out.Err != nil {
				log.Warn().Err(out.Err).Str("provider", p.Name()).Int("attempt", attempt).Msg("falling through")
			}
			return out, attempt
		}
	}
}

func (r *Resolver) put(ctx context.Context, fp string, rec *types.BibliographicRecord, ttl time.Duration, log zerolog.Logger) {
	if err := r.store.Put(ctx, fp, rec, ttl); err != nil {
		log.Warn().Err(err).Msg("cache write failed")
	}
}

func outcomeLabel(out provider.Outcome) string {
	if out.Kind == provider.OutcomeError && out.Err != nil {
		return string(out.Err.Kind)
	}
	return out.Kind.String()
}

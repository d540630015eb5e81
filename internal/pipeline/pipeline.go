// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs a complete resolution: it extracts the reference
// list from converted text, resolves every entry against the cache and the
// provider chain, normalizes the records, assigns citation keys, and writes
// the citation file with its run report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bibresolve/internal/bibtex"
	"github.com/pdiddy/bibresolve/internal/cache"
	"github.com/pdiddy/bibresolve/internal/citekey"
	"github.com/pdiddy/bibresolve/internal/extract"
	"github.com/pdiddy/bibresolve/internal/httputil"
	"github.com/pdiddy/bibresolve/internal/metrics"
	"github.com/pdiddy/bibresolve/internal/normalize"
	"github.com/pdiddy/bibresolve/internal/provider"
	"github.com/pdiddy/bibresolve/internal/resolve"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// StdoutPath selects standard output as the citation file.
const StdoutPath = "-"

// flushEvery is the number of finished entries between cache flushes, so an
// interrupted run loses little work.
const flushEvery = 25

// RunError is returned when a run stops before its output is complete.
// Resolved counts the entries resolved (and cached) before the failure and
// NextIndex is the --start-from value that resumes the run.
type RunError struct {
	Resolved  int
	NextIndex int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run stopped after %d resolved entries (resume at index %d): %v", e.Resolved, e.NextIndex, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Options wires the collaborators of a run.
type Options struct {
	Config types.Config

	// Chain is the ordered provider chain and Registry the DOI registry
	// used for enrichment; both usually come from provider.Build.
	Chain    []provider.Provider
	Registry normalize.Registry

	Store   cache.Store
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	// Progress receives one human-readable line per entry and a final
	// summary. Stdout receives the citation file when the output path is
	// StdoutPath. Both default to io.Discard and os.Stdout.
	Progress io.Writer
	Stdout   io.Writer

	// Now replaces time.Now for report timestamps.
	Now func() time.Time
}

// Run resolves the reference list found in text and writes the citation
// file to outPath. The returned report is non-nil whenever resolution
// started, including on cancellation, in which case the error is a
// *RunError carrying the resume index.
func Run(ctx context.Context, text, outPath string, opts Options) (*Report, error) {
	opts = withDefaults(opts)
	cfg := opts.Config
	log := opts.Log.With().Str("component", "pipeline").Logger()

	report := &Report{
		RunID:     uuid.NewString(),
		Output:    outPath,
		StartedAt: opts.Now().UTC(),
		StartFrom: cfg.StartFrom,
		Providers: map[string]int{},
	}
	log = log.With().Str("run_id", report.RunID).Logger()

	ex := extract.New(opts.Log)
	entries := slices.Collect(ex.Entries(extract.FindReferencesSection(text)))
	report.Parsed = len(entries)
	report.SkippedLines = ex.Skipped()
	opts.Metrics.RecordParseSkips(ex.Skipped())
	log.Info().Int("entries", len(entries)).Int("skipped_lines", ex.Skipped()).Msg("references extracted")

	resolver := resolve.New(opts.Chain, opts.Store, resolve.Options{
		Workers:     cfg.Workers,
		Backoff:     httputil.BackoffFrom(cfg.Retry),
		TTL:         cfg.Cache.TTL,
		NegativeTTL: cfg.Cache.NegativeTTL,
		Log:         opts.Log,
		Metrics:     opts.Metrics,
	})

	finished := 0
	results, resolveErr := resolver.ResolveAll(ctx, slices.Values(entries), resolve.RunOptions{
		StartIndex:   cfg.StartFrom,
		MaxEntries:   cfg.MaxEntries,
		ForceRefresh: cfg.Cache.ForceRefresh,
		OnResult: func(res resolve.Result) {
			printResult(opts.Progress, res)
			finished++
			if finished%flushEvery == 0 {
				if err := opts.Store.Flush(); err != nil {
					log.Warn().Err(err).Msg("cache flush failed")
				}
			}
		},
	})
	if err := opts.Store.Flush(); err != nil {
		log.Warn().Err(err).Msg("cache flush failed")
	}

	report.tally(results, cfg.StartFrom, len(entries))

	if resolveErr != nil {
		// Keep what was resolved: write it, then report how to resume.
		if sum, err := writeOutput(ctx, outPath, results, opts, report); err != nil {
			log.Warn().Err(err).Msg("writing partial output failed")
		} else {
			report.Written = sum
		}
		report.Interrupted = true
		finish(opts, report, log)
		return report, &RunError{Resolved: report.Resolved, NextIndex: report.NextIndex, Err: resolveErr}
	}

	sum, err := writeOutput(ctx, outPath, results, opts, report)
	if err != nil {
		finish(opts, report, log)
		return report, &RunError{Resolved: report.Resolved, NextIndex: cfg.StartFrom, Err: err}
	}
	report.Written = sum

	finish(opts, report, log)
	return report, nil
}

func withDefaults(opts Options) Options {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Store == nil {
		opts.Store = cache.NewMemStore()
	}
	return opts
}

// writeOutput normalizes the resolved records, assigns keys and writes the
// citation file plus the optional per-entry files.
func writeOutput(ctx context.Context, outPath string, results []resolve.Result, opts Options, report *Report) (bibtex.Summary, error) {
	records := normalizeAll(ctx, results, opts)

	items := make([]citekey.Item, len(results))
	for i, res := range results {
		items[i] = citekey.Item{Index: res.Entry.Index, Record: records[i]}
	}
	keys := citekey.Generate(items)

	out := make([]bibtex.Entry, 0, len(results))
	for i, res := range results {
		if res.Status == resolve.StatusSkipped {
			continue
		}
		out = append(out, bibtex.Entry{
			Key:     keys[res.Entry.Index],
			Index:   res.Entry.Index,
			Record:  records[i],
			RawText: res.Entry.RawText,
		})
	}

	w := bibtex.New(opts.Config.Output)
	var (
		sum bibtex.Summary
		err error
	)
	if outPath == StdoutPath {
		sum, err = w.Write(opts.Stdout, out)
	} else {
		sum, err = w.WriteFile(outPath, out)
	}
	if err != nil {
		return bibtex.Summary{}, fmt.Errorf("writing citations: %w", err)
	}

	if dir := opts.Config.Output.PerEntryDir; dir != "" {
		n, err := w.WriteEach(dir, out)
		if err != nil {
			return sum, fmt.Errorf("writing per-entry files: %w", err)
		}
		report.PerEntryFiles = n
	}
	return sum, nil
}

// normalizeAll normalizes resolved records concurrently. The returned slice
// is parallel to results; unresolved entries stay nil.
func normalizeAll(ctx context.Context, results []resolve.Result, opts Options) []*types.BibliographicRecord {
	n := normalize.New(normalize.Options{
		Enrich:   opts.Config.Enrich && opts.Registry != nil,
		Clean:    opts.Config.CleanFields,
		Registry: opts.Registry,
		Log:      opts.Log,
		Metrics:  opts.Metrics,
	})

	records := make([]*types.BibliographicRecord, len(results))
	var g errgroup.Group
	g.SetLimit(max(opts.Config.Workers, 1))
	for i, res := range results {
		if res.Record == nil {
			continue
		}
		g.Go(func() error {
			records[i] = n.Normalize(ctx, res.Record)
			return nil
		})
	}
	_ = g.Wait() // Normalize never fails
	return records
}

func finish(opts Options, report *Report, log zerolog.Logger) {
	report.FinishedAt = opts.Now().UTC()
	printSummary(opts.Progress, report)

	if report.Output != StdoutPath && report.Output != "" {
		path := ReportPath(report.Output)
		if err := report.WriteFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("writing run report failed")
		}
	}
	if path := opts.Config.MetricsFile; path != "" {
		if err := opts.Metrics.WriteFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("writing metrics failed")
		}
	}

	ev := log.Info()
	if report.Interrupted {
		ev = log.Warn()
	}
	ev.Int("resolved", report.Resolved).
		Int("unresolved", report.UnresolvedCount).
		Int("from_cache", report.FromCache).
		Int("next_index", report.NextIndex).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run finished")
}

func printResult(w io.Writer, res resolve.Result) {
	switch res.Status {
	case resolve.StatusResolved:
		fmt.Fprintf(w, "resolved:   [%d] %s (%s)\n", res.Entry.Index, res.Record.Title, res.Source)
	case resolve.StatusUnresolved:
		var provErr *provider.Error
		if errors.As(res.Err, &provErr) {
			fmt.Fprintf(w, "unresolved: [%d] %s (%s)\n", res.Entry.Index, extract.Body(res.Entry.RawText), provErr.Kind)
			return
		}
		fmt.Fprintf(w, "unresolved: [%d] %s\n", res.Entry.Index, extract.Body(res.Entry.RawText))
	case resolve.StatusSkipped:
		fmt.Fprintf(w, "skipped:    [%d] (interrupted)\n", res.Entry.Index)
	}
}

func printSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\nRun summary: %d resolved, %d unresolved, %d from cache (processed %d of %d)\n",
		r.Resolved, r.UnresolvedCount, r.FromCache, r.Processed, r.Parsed)
	if r.Interrupted || r.NextIndex < r.Parsed {
		fmt.Fprintf(w, "Resume with --start-from %d\n", r.NextIndex)
	}
}

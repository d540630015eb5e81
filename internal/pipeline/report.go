// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibresolve/internal/bibtex"
	"github.com/pdiddy/bibresolve/internal/extract"
	"github.com/pdiddy/bibresolve/internal/resolve"
)

// Report summarizes one run. It is written next to the citation file.
type Report struct {
	RunID      string    `yaml:"run_id"`
	Output     string    `yaml:"output"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`

	// Parsed counts reference entries found; SkippedLines counts non-blank
	// lines that were not recognized as references.
	Parsed       int `yaml:"parsed"`
	SkippedLines int `yaml:"skipped_lines"`

	StartFrom       int  `yaml:"start_from"`
	Processed       int  `yaml:"processed"`
	Resolved        int  `yaml:"resolved"`
	UnresolvedCount int  `yaml:"unresolved"`
	FromCache       int  `yaml:"from_cache"`
	Interrupted     bool `yaml:"interrupted,omitempty"`

	// NextIndex is the first entry a following run should process. It
	// equals Parsed once every entry has been handled.
	NextIndex int `yaml:"next_index"`

	// Providers counts resolved entries per source, "cache" included.
	Providers map[string]int `yaml:"providers"`

	Unresolved    []UnresolvedEntry `yaml:"unresolved_entries,omitempty"`
	Written       bibtex.Summary    `yaml:"written"`
	PerEntryFiles int               `yaml:"per_entry_files,omitempty"`
}

// UnresolvedEntry records a reference that no provider could resolve.
type UnresolvedEntry struct {
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
	Error string `yaml:"error,omitempty"`
}

// ReportPath returns the run report location for a citation file.
func ReportPath(output string) string {
	return output + ".report.yaml"
}

// tally fills the counters from results ordered by index.
func (r *Report) tally(results []resolve.Result, startFrom, parsed int) {
	r.NextIndex = min(startFrom, parsed)
	stopped := false
	for _, res := range results {
		if res.Status == resolve.StatusSkipped {
			stopped = true
			continue
		}
		if !stopped {
			r.NextIndex = res.Entry.Index + 1
		}
		r.Processed++

		switch res.Status {
		case resolve.StatusResolved:
			r.Resolved++
			r.Providers[res.Source]++
			if res.Source == resolve.SourceCache {
				r.FromCache++
			}
		case resolve.StatusUnresolved:
			r.UnresolvedCount++
			u := UnresolvedEntry{Index: res.Entry.Index, Text: extract.Body(res.Entry.RawText)}
			if res.Err != nil {
				u.Error = res.Err.Error()
			}
			r.Unresolved = append(r.Unresolved, u)
		}
	}
}

// WriteFile writes the report as YAML.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteFile.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

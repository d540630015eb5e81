// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex writes resolved references as a BibTeX database or as a
// CSL-YAML list, in the order the references appeared in the source.
package bibtex

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// Entry is one reference to write. A nil Record marks an unresolved
// reference, written according to the writer's unresolved policy.
type Entry struct {
	Key     string
	Index   int
	Record  *types.BibliographicRecord
	RawText string
}

// Summary reports what a write produced.
type Summary struct {
	Written      int   `json:"written" yaml:"written"`
	Placeholders int   `json:"placeholders" yaml:"placeholders"`
	Skipped      []int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Writer renders entries in one output format.
type Writer struct {
	Format          string
	Unresolved      string
	IncludeAbstract bool
}

// New returns a Writer configured from cfg. Empty settings select BibTeX
// and omission of unresolved entries.
func New(cfg types.OutputConfig) *Writer {
	w := &Writer{
		Format:          cfg.Format,
		Unresolved:      cfg.Unresolved,
		IncludeAbstract: cfg.IncludeAbstract,
	}
	if w.Format == "" {
		w.Format = types.FormatBibTeX
	}
	if w.Unresolved == "" {
		w.Unresolved = types.UnresolvedOmit
	}
	return w
}

// Write renders entries to out ordered by Index.
func (w *Writer) Write(out io.Writer, entries []Entry) (Summary, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int { return a.Index - b.Index })

	var sum Summary
	var keep []Entry
	for _, e := range sorted {
		switch {
		case e.Record != nil:
			sum.Written++
		case w.Unresolved == types.UnresolvedPlaceholder:
			sum.Placeholders++
		default:
			sum.Skipped = append(sum.Skipped, e.Index)
			continue
		}
		keep = append(keep, e)
	}

	var err error
	switch w.Format {
	case types.FormatBibTeX:
		err = w.writeBibTeX(out, keep)
	case types.FormatCSLYAML:
		err = writeCSL(out, keep, w.IncludeAbstract)
	default:
		err = fmt.Errorf("unknown output format %q", w.Format)
	}
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (w *Writer) writeBibTeX(out io.Writer, entries []Entry) error {
	for i, e := range entries {
		if i > 0 {
			if _, err := io.WriteString(out, "\n"); err != nil {
				return err
			}
		}
		var s string
		if e.Record == nil {
			s = placeholder(e)
		} else {
			s = format(entryKey(e), e.Record, w.IncludeAbstract)
		}
		if _, err := io.WriteString(out, s); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes entries to path atomically: the file is either left
// untouched or fully replaced.
func (w *Writer) WriteFile(path string, entries []Entry) (Summary, error) {
	var buf bytes.Buffer
	sum, err := w.Write(&buf, entries)
	if err != nil {
		return Summary{}, err
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// WriteEach writes one file per resolved entry into dir, named after the
// entry key. It returns the number of files written.
func (w *Writer) WriteEach(dir string, entries []Entry) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}
	ext := ".bib"
	if w.Format == types.FormatCSLYAML {
		ext = ".yaml"
	}
	single := &Writer{Format: w.Format, Unresolved: types.UnresolvedOmit, IncludeAbstract: w.IncludeAbstract}

	n := 0
	for _, e := range entries {
		if e.Record == nil {
			continue
		}
		if _, err := single.WriteFile(filepath.Join(dir, entryKey(e)+ext), []Entry{e}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func entryKey(e Entry) string {
	if e.Key != "" {
		return e.Key
	}
	return "ref" + strconv.Itoa(e.Index)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bibresolve pipeline:
// reference entries parsed from text, the queries derived from them, the
// bibliographic records returned by lookup sources, and run configuration.
package types

// ReferenceEntry is one line of a reference list together with a
// best-effort structural guess. Guesses are query hints only and may be
// wrong or empty. Entries are created by the extractor and never modified.
type ReferenceEntry struct {
	// Index is the zero-based position of the entry among the entries
	// emitted for a section. Output order follows Index.
	Index int `json:"index" yaml:"index"`

	// RawText is the source line verbatim, without its line terminator.
	RawText string `json:"raw_text" yaml:"raw_text"`

	GuessedAuthor string `json:"guessed_author,omitempty" yaml:"guessed_author,omitempty"`
	GuessedYear   int    `json:"guessed_year,omitempty" yaml:"guessed_year,omitempty"`
	GuessedTitle  string `json:"guessed_title,omitempty" yaml:"guessed_title,omitempty"`

	// DOI is set when the raw text carries a DOI (bare, doi: prefixed,
	// or as a doi.org URL).
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ArxivID is the version-less arXiv identifier when the raw text
	// carries one (arXiv:2301.07041 or an arxiv.org/abs URL).
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
}

// Query is the normalized lookup input derived from a ReferenceEntry.
type Query struct {
	// Text is the guessed title when one exists, otherwise the reference
	// body with its list marker and DOI removed.
	Text string `json:"text"`
	DOI  string `json:"doi,omitempty"`

	ArxivID string `json:"arxiv_id,omitempty"`

	// Author is the guessed first author's family name.
	Author string `json:"author,omitempty"`
	Year   int    `json:"year,omitempty"`
}

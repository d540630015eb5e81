// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// EntryType classifies a bibliographic record for citation output.
type EntryType string

const (
	EntryArticle       EntryType = "article"
	EntryInProceedings EntryType = "inproceedings"
	EntryBook          EntryType = "book"
	EntryOther         EntryType = "other"
)

// Author is one person in a record's ordered author list.
type Author struct {
	Family string `json:"family" yaml:"family"`
	Given  string `json:"given,omitempty" yaml:"given,omitempty"`
}

// String renders the author as "Family, Given", or just the family name
// when no given name is known.
func (a Author) String() string {
	if a.Given == "" {
		return a.Family
	}
	return a.Family + ", " + a.Given
}

// BibliographicRecord is the canonical citation metadata for one work.
// Providers create records; only the normalizer changes them afterwards,
// and it does so on a copy.
type BibliographicRecord struct {
	Title   string    `json:"title" yaml:"title"`
	Authors []Author  `json:"authors" yaml:"authors"`
	Year    int       `json:"year,omitempty" yaml:"year,omitempty"`
	Venue   string    `json:"venue,omitempty" yaml:"venue,omitempty"`
	Type    EntryType `json:"type" yaml:"type"`
	Volume  string    `json:"volume,omitempty" yaml:"volume,omitempty"`
	Number  string    `json:"number,omitempty" yaml:"number,omitempty"`
	Pages   string    `json:"pages,omitempty" yaml:"pages,omitempty"`

	// ArticleNo and NumPages replace Pages for article-numbered
	// proceedings ("138:1--138:12").
	ArticleNo string `json:"articleno,omitempty" yaml:"articleno,omitempty"`
	NumPages  string `json:"numpages,omitempty" yaml:"numpages,omitempty"`

	DOI       string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Abstract  string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Source names the provider that produced the record.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Complete reports whether the record has a non-empty title and at least
// one named author. Incomplete records are never emitted as resolved.
func (r *BibliographicRecord) Complete() bool {
	if r == nil || strings.TrimSpace(r.Title) == "" {
		return false
	}
	for _, a := range r.Authors {
		if strings.TrimSpace(a.Family) != "" || strings.TrimSpace(a.Given) != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record. A nil record clones to nil.
func (r *BibliographicRecord) Clone() *BibliographicRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Authors != nil {
		c.Authors = make([]Author, len(r.Authors))
		copy(c.Authors, r.Authors)
	}
	return &c
}

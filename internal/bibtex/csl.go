// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibresolve/internal/extract"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title,omitempty"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	Number         string    `yaml:"number,omitempty"`
	Publisher      string    `yaml:"publisher,omitempty"`
	PublisherPlace string    `yaml:"publisher-place,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

func writeCSL(w io.Writer, entries []Entry, withAbstract bool) error {
	items := make([]CSLItem, len(entries))
	for i, e := range entries {
		if e.Record == nil {
			items[i] = CSLItem{ID: entryKey(e), Type: "article", Note: extract.Body(e.RawText)}
			continue
		}
		items[i] = toCSLItem(entryKey(e), e.Record, withAbstract)
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding CSL-YAML: %w", err)
	}
	return enc.Close()
}

// toCSLItem converts a record to a CSLItem.
func toCSLItem(key string, rec *types.BibliographicRecord, withAbstract bool) CSLItem {
	item := CSLItem{
		ID:             key,
		Type:           cslType(rec.Type),
		Title:          rec.Title,
		ContainerTitle: rec.Venue,
		Volume:         rec.Volume,
		Issue:          rec.Number,
		Page:           cslPages(rec),
		Number:         rec.ArticleNo,
		Publisher:      rec.Publisher,
		PublisherPlace: rec.Address,
		DOI:            rec.DOI,
	}
	if withAbstract {
		item.Abstract = rec.Abstract
	}
	for _, a := range rec.Authors {
		switch {
		case a.Family != "":
			item.Author = append(item.Author, CSLName{Family: a.Family, Given: a.Given})
		case a.Given != "":
			item.Author = append(item.Author, CSLName{Literal: a.Given})
		}
	}
	if rec.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{rec.Year}}}
	}
	return item
}

// cslPages uses a single hyphen, the CSL range convention.
func cslPages(rec *types.BibliographicRecord) string {
	if rec.Pages == "" {
		return ""
	}
	first, last, ok := cutRange(rec.Pages)
	if !ok {
		return rec.Pages
	}
	return first + "-" + last
}

func cutRange(pages string) (string, string, bool) {
	for i := 0; i+1 < len(pages); i++ {
		if pages[i] == '-' && pages[i+1] == '-' {
			return pages[:i], pages[i+2:], true
		}
	}
	return "", "", false
}

func cslType(t types.EntryType) string {
	switch t {
	case types.EntryArticle:
		return "article-journal"
	case types.EntryInProceedings:
		return "paper-conference"
	case types.EntryBook:
		return "book"
	default:
		return "article"
	}
}

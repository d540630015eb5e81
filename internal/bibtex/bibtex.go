// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/bibresolve/internal/extract"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// format renders one record as a BibTeX entry.
func format(key string, rec *types.BibliographicRecord, withAbstract bool) string {
	entryType := bibType(rec.Type)
	var b strings.Builder

	fmt.Fprintf(&b, "@%s{%s,\n", entryType, key)

	field := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
	}

	field("author", formatAuthors(rec.Authors))
	field("title", escapeLatex(rec.Title))

	switch entryType {
	case "article":
		field("journal", escapeLatex(rec.Venue))
	case "inproceedings":
		field("booktitle", escapeLatex(rec.Venue))
	case "misc":
		field("howpublished", escapeLatex(rec.Venue))
	}

	if rec.Year > 0 {
		field("year", strconv.Itoa(rec.Year))
	}
	field("volume", escapeLatex(rec.Volume))
	field("number", escapeLatex(rec.Number))
	field("pages", rec.Pages)
	field("articleno", rec.ArticleNo)
	field("numpages", rec.NumPages)
	field("publisher", escapeLatex(rec.Publisher))
	field("address", escapeLatex(rec.Address))
	field("doi", rec.DOI)
	if withAbstract {
		field("abstract", escapeLatex(rec.Abstract))
	}

	b.WriteString("}\n")
	return b.String()
}

// placeholder renders an unresolved reference so the citation still
// compiles and the raw text stays visible.
func placeholder(e Entry) string {
	return fmt.Sprintf("@misc{%s,\n  note = {%s},\n}\n", entryKey(e), escapeLatex(extract.Body(e.RawText)))
}

func bibType(t types.EntryType) string {
	switch t {
	case types.EntryArticle:
		return "article"
	case types.EntryInProceedings:
		return "inproceedings"
	case types.EntryBook:
		return "book"
	default:
		return "misc"
	}
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []types.Author) string {
	var formatted []string
	for _, a := range authors {
		family := escapeLatex(strings.TrimSpace(a.Family))
		given := escapeLatex(strings.TrimSpace(a.Given))
		switch {
		case family != "" && given != "":
			formatted = append(formatted, family+", "+given)
		case family != "":
			formatted = append(formatted, family)
		case given != "":
			formatted = append(formatted, given)
		}
	}
	return strings.Join(formatted, " and ")
}

var latexReplacer = strings.NewReplacer(
	"\\", `\textbackslash{}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	return latexReplacer.Replace(s)
}

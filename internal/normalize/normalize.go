// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize cleans resolved records and optionally enriches them
// from the DOI registry before they are keyed and written.
package normalize

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/pdiddy/bibresolve/internal/metrics"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// Registry discovers and fetches authoritative DOI metadata.
type Registry interface {
	FindDOI(ctx context.Context, rec *types.BibliographicRecord) (string, error)
	Lookup(ctx context.Context, doi string) (*types.BibliographicRecord, error)
}

// Options configures a Normalizer.
type Options struct {
	// Enrich looks up a DOI for records that lack one and merges the
	// registry's metadata.
	Enrich bool

	// Clean trims every field and drops empty values and brace artefacts.
	Clean bool

	Registry Registry
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
}

// Normalizer applies enrichment and cleanup to records.
type Normalizer struct {
	opts Options
}

// New returns a Normalizer.
func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

var (
	pageRangeRe = regexp.MustCompile(`^([^\s\-–—‐−]+)\s*(?:-{1,3}|[–—‐−])\s*([^\s\-–—‐−]+)$`)
	acmPagesRe  = regexp.MustCompile(`^(\d+):(\d+)--(\d+):(\d+)$`)
)

// Normalize returns a normalized copy of rec. The input is not modified.
// Enrichment failures are logged and leave the record as it was.
func (n *Normalizer) Normalize(ctx context.Context, rec *types.BibliographicRecord) *types.BibliographicRecord {
	if rec == nil {
		return nil
	}
	out := rec.Clone()

	if n.opts.Enrich && n.opts.Registry != nil && strings.TrimSpace(out.DOI) == "" {
		n.enrich(ctx, out)
	}
	if n.opts.Clean {
		clean(out)
	}

	out.Pages = CanonicalPages(out.Pages)
	splitArticlePages(out)
	fillPublisher(out)
	out.Venue = venueCase(out.Venue)
	return out
}

// enrich finds the record's DOI and merges the registry metadata. The
// registry wins for identifiers and publication facts it is authoritative
// for; descriptive fields are only filled in when missing.
func (n *Normalizer) enrich(ctx context.Context, rec *types.BibliographicRecord) {
	log := n.opts.Log.With().Str("title", rec.Title).Logger()

	doi, err := n.opts.Registry.FindDOI(ctx, rec)
	if err != nil {
		log.Debug().Err(err).Msg("DOI search failed")
		return
	}
	if doi == "" {
		return
	}
	auth, err := n.opts.Registry.Lookup(ctx, doi)
	if err != nil {
		log.Debug().Err(err).Str("doi", doi).Msg("DOI lookup failed")
		return
	}

	rec.DOI = doi
	n.opts.Metrics.RecordEnrichment()
	log.Debug().Str("doi", doi).Msg("enriched")
	if auth == nil {
		return
	}

	overwrite := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	if auth.DOI != "" {
		rec.DOI = auth.DOI
	}
	overwrite(&rec.Publisher, auth.Publisher)
	overwrite(&rec.Address, auth.Address)
	overwrite(&rec.Pages, auth.Pages)
	fill(&rec.Venue, auth.Venue)
	fill(&rec.Volume, auth.Volume)
	fill(&rec.Number, auth.Number)
	if rec.Year == 0 {
		rec.Year = auth.Year
	}
	if rec.Type == types.EntryOther && auth.Type != "" {
		rec.Type = auth.Type
	}
}

// clean trims every string field, removes empty brace pairs and drops
// authors with no name.
func clean(rec *types.BibliographicRecord) {
	for _, f := range []*string{
		&rec.Title, &rec.Venue, &rec.Volume, &rec.Number, &rec.Pages,
		&rec.ArticleNo, &rec.NumPages, &rec.DOI, &rec.Publisher,
		&rec.Address, &rec.Abstract,
	} {
		*f = cleanValue(*f)
	}

	authors := rec.Authors[:0]
	for _, a := range rec.Authors {
		a.Family = cleanValue(a.Family)
		a.Given = cleanValue(a.Given)
		if a.Family == "" && a.Given == "" {
			continue
		}
		authors = append(authors, a)
	}
	rec.Authors = authors
}

func cleanValue(s string) string {
	for strings.Contains(s, "{}") {
		s = strings.ReplaceAll(s, "{}", "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalPages rewrites a page range to use the "--" separator. Hyphens,
// dash variants and spaced separators are all accepted; single pages and
// unrecognized values are only trimmed.
func CanonicalPages(pages string) string {
	pages = strings.TrimSpace(pages)
	if m := pageRangeRe.FindStringSubmatch(pages); m != nil {
		return m[1] + "--" + m[2]
	}
	return pages
}

// splitArticlePages converts article-numbered pages such as 138:1--138:12
// into an article number and a page count.
func splitArticlePages(rec *types.BibliographicRecord) {
	m := acmPagesRe.FindStringSubmatch(rec.Pages)
	if m == nil || m[1] != m[3] {
		return
	}
	first, _ := strconv.Atoi(m[2])
	last, _ := strconv.Atoi(m[4])
	if last < first {
		return
	}
	rec.ArticleNo = m[1]
	rec.NumPages = strconv.Itoa(last - first + 1)
	rec.Pages = ""
}

// venueCase title-cases venues written entirely in capitals. Short
// all-caps names are acronyms and are left alone. Inside a longer venue,
// known acronyms and words without vowels keep their capitals
// ("IEEE TRANSACTIONS ON ROBOTICS" keeps IEEE).
func venueCase(venue string) string {
	letters := 0
	for _, r := range venue {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return venue
		}
		letters++
	}
	if letters <= maxAcronymLetters {
		return venue
	}

	words := strings.Fields(venue)
	for i, w := range words {
		lower := strings.ToLower(w)
		switch {
		case smallWords[lower]:
			if i > 0 {
				words[i] = lower
			} else {
				words[i] = capitalize(lower)
			}
		case isAcronym(w):
		default:
			words[i] = capitalize(lower)
		}
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first letter of w, skipping leading
// punctuation such as an opening parenthesis.
func capitalize(w string) string {
	r := []rune(w)
	for i, c := range r {
		if unicode.IsLetter(c) {
			r[i] = unicode.ToUpper(c)
			break
		}
	}
	return string(r)
}

func isAcronym(w string) bool {
	letters := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
	if letters == "" || venueAcronyms[letters] {
		return true
	}
	return !strings.ContainsAny(letters, "AEIOUY")
}

const maxAcronymLetters = 5

var venueAcronyms = map[string]bool{
	"AAAI": true, "ACL": true, "ACM": true, "AI": true, "CHI": true,
	"CVPR": true, "ECCV": true, "EMNLP": true, "ICCV": true, "ICLR": true,
	"ICML": true, "IEEE": true, "IJCAI": true, "KDD": true, "NAACL": true,
	"NIPS": true, "SIAM": true, "SIGGRAPH": true, "SIGIR": true,
	"SIGMOD": true, "USENIX": true, "VLDB": true, "WWW": true,
}

var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "for": true, "in": true,
	"of": true, "on": true, "the": true, "to": true, "with": true,
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

const (
	openAlexSelect  = "id,doi,title,display_name,publication_year,type,authorships,biblio,primary_location,abstract_inverted_index"
	openAlexPerPage = 10
)

// OpenAlex is the metadata-API provider. A DOI lookup, when the query has a
// DOI, replaces the title search entirely.
type OpenAlex struct {
	Client *http.Client

	// BaseURL overrides openAlexAPIBase.
	BaseURL string

	// Email is sent as the mailto parameter for polite pool access.
	Email     string
	UserAgent string
	Threshold float64
}

// Name returns the provider identifier.
func (p *OpenAlex) Name() string { return types.ProviderOpenAlex }

// Resolve looks the query up by DOI when one is known, otherwise by title
// search ranked on title similarity.
func (p *OpenAlex) Resolve(ctx context.Context, q types.Query) Outcome {
	if q.DOI != "" {
		return p.byDOI(ctx, q.DOI)
	}
	if strings.TrimSpace(q.Text) == "" {
		return NotFound()
	}

	params := url.Values{
		"search":   {q.Text},
		"per_page": {fmt.Sprintf("%d", openAlexPerPage)},
		"select":   {openAlexSelect},
	}
	if q.Year > 0 {
		params.Set("filter", fmt.Sprintf("publication_year:%d", q.Year))
	}
	works, perr := p.fetch(ctx, params)
	if perr != nil {
		return Outcome{Kind: OutcomeError, Err: perr}
	}

	candidates := make([]*types.BibliographicRecord, 0, len(works))
	for _, w := range works {
		candidates = append(candidates, w.record())
	}
	best, _ := BestMatch(candidates, q, p.Threshold)
	if best == nil {
		return NotFound()
	}
	return Found(best)
}

func (p *OpenAlex) byDOI(ctx context.Context, doi string) Outcome {
	params := url.Values{
		"filter": {"doi:" + strings.ToLower(doi)},
		"select": {openAlexSelect},
	}
	works, perr := p.fetch(ctx, params)
	if perr != nil {
		return Outcome{Kind: OutcomeError, Err: perr}
	}
	for _, w := range works {
		if rec := w.record(); rec.Complete() {
			return Found(rec)
		}
	}
	return NotFound()
}

func (p *OpenAlex) fetch(ctx context.Context, params url.Values) ([]openAlexWork, *Error) {
	if p.Email != "" {
		params.Set("mailto", p.Email)
	}
	base := p.BaseURL
	if base == "" {
		base = openAlexAPIBase
	}

	var resp openAlexResponse
	found, perr := getJSON(ctx, p.Client, p.Name(), base+"?"+params.Encode(), p.UserAgent, nil, &resp)
	if perr != nil || !found {
		return nil, perr
	}
	return resp.Results, nil
}

// record maps an OpenAlex work onto a BibliographicRecord.
func (w openAlexWork) record() *types.BibliographicRecord {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	rec := &types.BibliographicRecord{
		Title:    strings.TrimSpace(title),
		Year:     w.PublicationYear,
		Type:     entryType(w.Type),
		Volume:   w.Biblio.Volume,
		Number:   w.Biblio.Issue,
		Pages:    pageRange(w.Biblio.FirstPage, w.Biblio.LastPage),
		DOI:      strings.TrimPrefix(strings.ToLower(w.DOI), "https://doi.org/"),
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
		Source:   types.ProviderOpenAlex,
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			rec.Authors = append(rec.Authors, splitName(a.Author.DisplayName))
		}
	}
	if src := w.PrimaryLocation.Source; src != nil {
		rec.Venue = src.DisplayName
		rec.Publisher = src.HostOrganizationName
		if rec.Type == types.EntryOther && src.Type == "conference" {
			rec.Type = types.EntryInProceedings
		}
	}
	return rec
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	DOI                   string               `json:"doi"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	PublicationYear       int                  `json:"publication_year"`
	Type                  string               `json:"type"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	Biblio                openAlexBiblio       `json:"biblio"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexBiblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}

type openAlexLocation struct {
	Source *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName          string `json:"display_name"`
	HostOrganizationName string `json:"host_organization_name"`
	Type                 string `json:"type"`
}

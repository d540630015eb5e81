// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

const crossrefRows = 5

var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

// Crossref is the registry provider. As a chain member it answers only
// queries that already carry a DOI; the enricher also uses it to discover
// DOIs by bibliographic search.
type Crossref struct {
	Client  *http.Client
	BaseURL string

	// Email is sent as the mailto parameter for polite pool access.
	Email     string
	UserAgent string
	Threshold float64
}

// Name returns the provider identifier.
func (p *Crossref) Name() string { return types.ProviderCrossref }

// Resolve fetches authoritative metadata for q.DOI. Queries without a DOI
// are not found without any network call.
func (p *Crossref) Resolve(ctx context.Context, q types.Query) Outcome {
	if q.DOI == "" {
		return NotFound()
	}
	var resp crossrefResponse
	found, perr := getJSON(ctx, p.Client, p.Name(), p.workURL(q.DOI), p.UserAgent, nil, &resp)
	if perr != nil {
		return Outcome{Kind: OutcomeError, Err: perr}
	}
	if !found {
		return NotFound()
	}
	return Found(resp.Message.record())
}

// Lookup returns the registry record for doi, or nil when the DOI is
// unknown.
func (p *Crossref) Lookup(ctx context.Context, doi string) (*types.BibliographicRecord, error) {
	out := p.Resolve(ctx, types.Query{DOI: doi})
	switch out.Kind {
	case OutcomeFound:
		return out.Record, nil
	case OutcomeError:
		return nil, out.Err
	default:
		return nil, nil
	}
}

// FindDOI searches the registry for the work described by rec and returns
// its DOI, or "" when no candidate is similar enough.
func (p *Crossref) FindDOI(ctx context.Context, rec *types.BibliographicRecord) (string, error) {
	if rec == nil || strings.TrimSpace(rec.Title) == "" {
		return "", nil
	}
	bib := rec.Title
	if len(rec.Authors) > 0 && rec.Authors[0].Family != "" {
		bib += " " + rec.Authors[0].Family
	}
	params := url.Values{
		"query.bibliographic": {bib},
		"rows":                {fmt.Sprintf("%d", crossrefRows)},
	}
	if rec.Year > 0 {
		params.Set("filter", fmt.Sprintf("from-pub-date:%d,until-pub-date:%d", rec.Year, rec.Year))
	}
	if p.Email != "" {
		params.Set("mailto", p.Email)
	}

	var resp crossrefSearchResponse
	found, perr := getJSON(ctx, p.Client, p.Name(), p.base()+"?"+params.Encode(), p.UserAgent, nil, &resp)
	if perr != nil {
		return "", perr
	}
	if !found {
		return "", nil
	}

	candidates := make([]*types.BibliographicRecord, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		candidates = append(candidates, item.record())
	}
	best, _ := BestMatch(candidates, types.Query{Text: rec.Title, Year: rec.Year}, p.Threshold)
	if best == nil {
		return "", nil
	}
	return best.DOI, nil
}

func (p *Crossref) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return crossrefAPIBase
}

func (p *Crossref) workURL(doi string) string {
	u := p.base() + "/" + doi
	if p.Email != "" {
		u += "?mailto=" + url.QueryEscape(p.Email)
	}
	return u
}

// record maps a CrossRef work onto a BibliographicRecord.
func (w crossrefWork) record() *types.BibliographicRecord {
	rec := &types.BibliographicRecord{
		Type:      entryType(w.Type),
		Volume:    w.Volume,
		Number:    w.Issue,
		Pages:     w.Page,
		DOI:       strings.ToLower(w.DOI),
		Publisher: w.Publisher,
		Address:   w.PublisherLocation,
		Abstract:  stripJATS(w.Abstract),
		Source:    types.ProviderCrossref,
	}
	if len(w.Title) > 0 {
		rec.Title = strings.TrimSpace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		rec.Venue = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		switch {
		case a.Family != "":
			rec.Authors = append(rec.Authors, types.Author{Family: a.Family, Given: a.Given})
		case a.Name != "":
			rec.Authors = append(rec.Authors, types.Author{Family: a.Name})
		}
	}
	for _, d := range []crossrefDate{w.Issued, w.PublishedPrint, w.Created} {
		if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 && d.DateParts[0][0] > 0 {
			rec.Year = d.DateParts[0][0]
			break
		}
	}
	return rec
}

// stripJATS removes JATS XML markup from a CrossRef abstract.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	s = jatsTagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefSearchResponse struct {
	Message struct {
		Items []crossrefWork `json:"items"`
	} `json:"message"`
}

type crossrefWork struct {
	DOI               string           `json:"DOI"`
	Type              string           `json:"type"`
	Title             []string         `json:"title"`
	ContainerTitle    []string         `json:"container-title"`
	Author            []crossrefAuthor `json:"author"`
	Issued            crossrefDate     `json:"issued"`
	PublishedPrint    crossrefDate     `json:"published-print"`
	Created           crossrefDate     `json:"created"`
	Volume            string           `json:"volume"`
	Issue             string           `json:"issue"`
	Page              string           `json:"page"`
	Publisher         string           `json:"publisher"`
	PublisherLocation string           `json:"publisher-location"`
	Abstract          string           `json:"abstract"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

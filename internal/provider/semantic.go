// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const (
	semanticFields = "title,abstract,authors,externalIds,year,venue,journal,publicationTypes"
	semanticLimit  = 10
)

// SemanticScholar is a second metadata-API provider.
type SemanticScholar struct {
	Client    *http.Client
	BaseURL   string
	APIKey    string
	UserAgent string
	Threshold float64
}

// Name returns the provider identifier.
func (p *SemanticScholar) Name() string { return types.ProviderSemanticScholar }

// Resolve looks the paper up by DOI when known, otherwise by ranked search.
func (p *SemanticScholar) Resolve(ctx context.Context, q types.Query) Outcome {
	if q.DOI != "" {
		var paper semanticPaper
		reqURL := p.base() + "/paper/DOI:" + q.DOI + "?" + url.Values{"fields": {semanticFields}}.Encode()
		found, perr := getJSON(ctx, p.Client, p.Name(), reqURL, p.UserAgent, p.header(), &paper)
		if perr != nil {
			return Outcome{Kind: OutcomeError, Err: perr}
		}
		if !found {
			return NotFound()
		}
		return Found(paper.record())
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return NotFound()
	}
	params := url.Values{
		"query":  {text},
		"limit":  {fmt.Sprintf("%d", semanticLimit)},
		"fields": {semanticFields},
	}
	if q.Year > 0 {
		params.Set("year", fmt.Sprintf("%d", q.Year))
	}

	var sr semanticResponse
	found, perr := getJSON(ctx, p.Client, p.Name(), p.base()+"/paper/search?"+params.Encode(), p.UserAgent, p.header(), &sr)
	if perr != nil {
		return Outcome{Kind: OutcomeError, Err: perr}
	}
	if !found {
		return NotFound()
	}

	candidates := make([]*types.BibliographicRecord, 0, len(sr.Data))
	for _, paper := range sr.Data {
		candidates = append(candidates, paper.record())
	}
	best, _ := BestMatch(candidates, q, p.Threshold)
	if best == nil {
		return NotFound()
	}
	return Found(best)
}

func (p *SemanticScholar) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return semanticAPIBase
}

func (p *SemanticScholar) header() http.Header {
	if p.APIKey == "" {
		return nil
	}
	return http.Header{"x-api-key": {p.APIKey}}
}

func (paper semanticPaper) record() *types.BibliographicRecord {
	rec := &types.BibliographicRecord{
		Title:    strings.TrimSpace(paper.Title),
		Year:     paper.Year,
		Venue:    paper.Venue,
		Type:     types.EntryOther,
		DOI:      strings.ToLower(paper.ExternalIDs.DOI),
		Abstract: paper.Abstract,
		Source:   types.ProviderSemanticScholar,
	}
	if paper.Journal != nil {
		if paper.Journal.Name != "" {
			rec.Venue = paper.Journal.Name
		}
		rec.Volume = strings.TrimSpace(paper.Journal.Volume)
		rec.Pages = strings.TrimSpace(paper.Journal.Pages)
	}
	for _, t := range paper.PublicationTypes {
		switch t {
		case "JournalArticle":
			rec.Type = types.EntryArticle
		case "Conference":
			rec.Type = types.EntryInProceedings
		case "Book":
			rec.Type = types.EntryBook
		default:
			continue
		}
		break
	}
	for _, a := range paper.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, splitName(a.Name))
		}
	}
	return rec
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID          string              `json:"paperId"`
	Title            string              `json:"title"`
	Abstract         string              `json:"abstract"`
	Year             int                 `json:"year"`
	Venue            string              `json:"venue"`
	Journal          *semanticJournal    `json:"journal"`
	PublicationTypes []string            `json:"publicationTypes"`
	Authors          []semanticAuthor    `json:"authors"`
	ExternalIDs      semanticExternalIDs `json:"externalIds"`
}

type semanticJournal struct {
	Name   string `json:"name"`
	Volume string `json:"volume"`
	Pages  string `json:"pages"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

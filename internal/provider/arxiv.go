// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const arxivMaxResults = 10

// Arxiv resolves preprints through the arXiv Atom API. References that
// carry an arXiv identifier are fetched by id; others are matched by title.
type Arxiv struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
	Threshold float64
}

// Name returns the provider identifier.
func (p *Arxiv) Name() string { return types.ProviderArxiv }

// Resolve looks the preprint up by id when known, otherwise by ranked
// title search.
func (p *Arxiv) Resolve(ctx context.Context, q types.Query) Outcome {
	params := url.Values{}
	switch {
	case q.ArxivID != "":
		params.Set("id_list", q.ArxivID)
	case strings.TrimSpace(q.Text) != "":
		params.Set("search_query", arxivSearchQuery(q))
		params.Set("max_results", strconv.Itoa(arxivMaxResults))
	default:
		return NotFound()
	}

	feed, perr := p.fetch(ctx, params)
	if perr != nil {
		return Outcome{Kind: OutcomeError, Err: perr}
	}

	candidates := make([]*types.BibliographicRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if rec := e.record(); rec != nil {
			candidates = append(candidates, rec)
		}
	}
	if q.ArxivID != "" {
		for _, c := range candidates {
			if c.Complete() {
				return Found(c)
			}
		}
		return NotFound()
	}

	best, _ := BestMatch(candidates, q, p.Threshold)
	if best == nil {
		return NotFound()
	}
	return Found(best)
}

func (p *Arxiv) fetch(ctx context.Context, params url.Values) (*arxivFeed, *Error) {
	base := arxivAPIBase
	if p.BaseURL != "" {
		base = p.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Kind: ErrorMalformed, Provider: p.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	ua := p.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/atom+xml")

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if perr := statusError(p.Name(), resp); perr != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, perr
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &Error{Kind: ErrorMalformed, Provider: p.Name(), Err: fmt.Errorf("parsing arXiv response: %w", err)}
	}
	return &feed, nil
}

// arxivSearchQuery builds a title query, narrowed by the first author's
// family name when known.
func arxivSearchQuery(q types.Query) string {
	query := `ti:"` + foldTitle(q.Text) + `"`
	if q.Author != "" {
		query += " AND au:" + strings.ToLower(q.Author)
	}
	return query
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	Authors    []arxivAuthor `xml:"author"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// record converts a feed entry. Entries without an abs/ id, such as the
// error entry arXiv returns for a malformed id, yield nil.
func (e arxivEntry) record() *types.BibliographicRecord {
	id := extractArxivID(e.ID)
	if id == "" {
		return nil
	}
	rec := &types.BibliographicRecord{
		Type:     types.EntryOther,
		Title:    strings.Join(strings.Fields(e.Title), " "),
		Venue:    "arXiv preprint arXiv:" + id,
		Abstract: strings.Join(strings.Fields(e.Summary), " "),
		DOI:      strings.ToLower(strings.TrimSpace(e.DOI)),
		Source:   types.ProviderArxiv,
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		rec.Year = t.Year()
	}
	if ref := strings.TrimSpace(e.JournalRef); ref != "" {
		rec.Type = types.EntryArticle
		rec.Venue = ref
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			rec.Authors = append(rec.Authors, splitName(name))
		}
	}
	return rec
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/bibresolve/internal/httputil"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// scholarSearchBase is the scholarly-search results endpoint. Declared as a
// var so tests can substitute an httptest server.
var scholarSearchBase = "https://scholar.google.com/scholar"

// Delay profiles between consecutive scholarly-search queries.
const (
	DefaultScholarMinDelay = 500 * time.Millisecond
	DefaultScholarMaxDelay = time.Second
	FastScholarMinDelay    = 100 * time.Millisecond
	FastScholarMaxDelay    = 300 * time.Millisecond
)

// DefaultChallengeTimeout bounds how long an interactive run waits for a
// person to clear a challenge.
const DefaultChallengeTimeout = 5 * time.Minute

var (
	scholarYearRe   = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
	scholarTagRe    = regexp.MustCompile(`^\s*(\[[A-Z]+\]\s*)+`)
	scholarDOIRe    = regexp.MustCompile(`10\.\d{4,9}/[^\s?#&]+`)
	scholarProcWord = []string{"proceedings", "conference", "symposium", "workshop"}
)

// Pacer enforces a minimum spacing between queries plus random jitter up to
// the maximum delay.
type Pacer struct {
	lim    *rate.Limiter
	jitter time.Duration
}

// NewPacer returns a pacer spacing calls at least minDelay apart with up to
// maxDelay-minDelay of extra random wait. A non-positive minDelay disables
// spacing.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &Pacer{
		lim:    rate.NewLimiter(limit, 1),
		jitter: max(maxDelay-minDelay, 0),
	}
}

// PacerFor builds the pacer selected by cfg: the fast profile when Fast is
// set, the default profile otherwise. Zero delays fall back to the
// built-in profile values.
func PacerFor(cfg types.ScholarConfig) *Pacer {
	if cfg.Fast {
		return NewPacer(orDuration(cfg.FastMinDelay, FastScholarMinDelay), orDuration(cfg.FastMaxDelay, FastScholarMaxDelay))
	}
	return NewPacer(orDuration(cfg.MinDelay, DefaultScholarMinDelay), orDuration(cfg.MaxDelay, DefaultScholarMaxDelay))
}

// Wait blocks until the next query may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.jitter > 0 {
		if err := httputil.Sleep(ctx, rand.N(p.jitter)); err != nil {
			return err
		}
	}
	return p.lim.Wait(ctx)
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Scholar is the scholarly-search provider. It reads the public results
// page, so every call is paced and challenge pages are detected before
// parsing. Its pacing and challenge state are process-wide, so it reports
// itself Exclusive.
type Scholar struct {
	Fetcher PageFetcher
	BaseURL string
	Pacer   *Pacer

	// Interactive makes a challenge wait on Challenge instead of failing
	// with blocked.
	Interactive      bool
	Challenge        ChallengeHandler
	ChallengeTimeout time.Duration

	Threshold float64
	Log       zerolog.Logger
}

// Name returns the provider identifier.
func (p *Scholar) Name() string { return types.ProviderScholar }

// Exclusive marks the provider as single-flight.
func (p *Scholar) Exclusive() bool { return true }

// Resolve searches for the query text and ranks the parsed results.
func (p *Scholar) Resolve(ctx context.Context, q types.Query) Outcome {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = q.DOI
	}
	if text == "" {
		return NotFound()
	}
	pageURL := p.searchURL(text, q.Year)

	page, out, ok := p.fetch(ctx, pageURL)
	if !ok {
		return out
	}

	if isChallenge(page) {
		if !p.Interactive || p.Challenge == nil {
			p.Log.Warn().Str("url", pageURL).Msg("anti-automation challenge in unattended mode")
			return Failed(p.Name(), ErrorBlocked, fmt.Errorf("challenge at %s", pageURL))
		}
		p.Log.Warn().Str("url", pageURL).Msg("anti-automation challenge, waiting for manual resolution")
		if err := p.await(ctx, pageURL); err != nil {
			return Failed(p.Name(), ErrorBlocked, fmt.Errorf("challenge not cleared: %w", err))
		}
		page, out, ok = p.fetch(ctx, pageURL)
		if !ok {
			return out
		}
		if isChallenge(page) {
			return Failed(p.Name(), ErrorBlocked, fmt.Errorf("challenge still present at %s", pageURL))
		}
	}

	switch {
	case page.Status == http.StatusOK:
	case page.Status == http.StatusNotFound:
		return NotFound()
	case page.Status == http.StatusTooManyRequests:
		return Failed(p.Name(), ErrorRateLimited, fmt.Errorf("HTTP %d", page.Status))
	case page.Status >= 500:
		return Failed(p.Name(), ErrorTimeout, fmt.Errorf("HTTP %d", page.Status))
	default:
		return Failed(p.Name(), ErrorMalformed, fmt.Errorf("HTTP %d", page.Status))
	}

	candidates, err := parseScholarResults(page.Body)
	if err != nil {
		return Failed(p.Name(), ErrorMalformed, err)
	}
	best, score := BestMatch(candidates, types.Query{Text: text, Year: q.Year}, p.Threshold)
	if best == nil {
		p.Log.Debug().Int("candidates", len(candidates)).Float64("best_score", score).Msg("no scholar result above threshold")
		return NotFound()
	}
	return Found(best)
}

// fetch paces and fetches pageURL. ok is false when out holds the failure.
func (p *Scholar) fetch(ctx context.Context, pageURL string) (Page, Outcome, bool) {
	if err := p.pacer().Wait(ctx); err != nil {
		return Page{}, Failed(p.Name(), ErrorTimeout, err), false
	}
	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = &HTTPFetcher{}
	}
	page, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return Page{}, Outcome{Kind: OutcomeError, Err: transportError(p.Name(), err)}, false
	}
	return page, Outcome{}, true
}

func (p *Scholar) await(ctx context.Context, pageURL string) error {
	timeout := p.ChallengeTimeout
	if timeout <= 0 {
		timeout = DefaultChallengeTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Challenge.Await(wctx, pageURL)
}

func (p *Scholar) pacer() *Pacer {
	if p.Pacer == nil {
		p.Pacer = NewPacer(DefaultScholarMinDelay, DefaultScholarMaxDelay)
	}
	return p.Pacer
}

func (p *Scholar) searchURL(text string, year int) string {
	base := p.BaseURL
	if base == "" {
		base = scholarSearchBase
	}
	params := url.Values{
		"q":  {text},
		"hl": {"en"},
	}
	if year > 0 {
		y := strconv.Itoa(year)
		params.Set("as_ylo", y)
		params.Set("as_yhi", y)
	}
	return base + "?" + params.Encode()
}

// parseScholarResults extracts one record per result block.
func parseScholarResults(body string) ([]*types.BibliographicRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var out []*types.BibliographicRecord
	doc.Find(".gs_ri").Each(func(_ int, s *goquery.Selection) {
		if rec := scholarRecord(s); rec != nil {
			out = append(out, rec)
		}
	})
	return out, nil
}

func scholarRecord(s *goquery.Selection) *types.BibliographicRecord {
	h3 := s.Find("h3.gs_rt").First()
	if h3.Length() == 0 {
		return nil
	}
	isBook := strings.Contains(h3.Find(".gs_ct1, .gs_ct2, .gs_ctc").Text(), "BOOK")
	h3.Find(".gs_ct1, .gs_ct2, .gs_ctc, .gs_ctu").Remove()

	rec := &types.BibliographicRecord{
		Title:  cleanText(scholarTagRe.ReplaceAllString(h3.Text(), "")),
		Type:   types.EntryOther,
		Source: types.ProviderScholar,
	}
	if href, ok := h3.Find("a").First().Attr("href"); ok {
		if m := scholarDOIRe.FindString(href); m != "" {
			if unescaped, err := url.PathUnescape(m); err == nil {
				m = unescaped
			}
			rec.DOI = strings.ToLower(strings.TrimRight(m, ".,;"))
		}
	}

	parts := strings.Split(cleanText(s.Find(".gs_a").First().Text()), " - ")
	if len(parts) > 0 {
		for _, name := range strings.Split(parts[0], ",") {
			name = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(name), "…"))
			if name == "" {
				continue
			}
			rec.Authors = append(rec.Authors, splitName(name))
		}
	}
	if len(parts) > 1 {
		rec.Venue, rec.Year = venueYear(parts[1])
	}
	if len(parts) > 2 && !strings.Contains(parts[2], ".") {
		rec.Publisher = strings.TrimSpace(parts[2])
	}

	lower := strings.ToLower(rec.Venue)
	switch {
	case isBook:
		rec.Type = types.EntryBook
	case containsAny(lower, scholarProcWord):
		rec.Type = types.EntryInProceedings
	case rec.Venue != "":
		rec.Type = types.EntryArticle
	}
	return rec
}

// venueYear splits "Journal of Widgets, 2020" into venue and year.
func venueYear(s string) (string, int) {
	loc := scholarYearRe.FindAllStringIndex(s, -1)
	if len(loc) == 0 {
		return strings.TrimSpace(strings.TrimRight(s, "…")), 0
	}
	last := loc[len(loc)-1]
	year, _ := strconv.Atoi(s[last[0]:last[1]])
	venue := strings.TrimSpace(s[:last[0]])
	venue = strings.TrimSpace(strings.TrimRight(venue, ",…"))
	return venue, year
}

// cleanText replaces non-breaking spaces and collapses whitespace.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

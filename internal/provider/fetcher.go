// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/chromedp/chromedp"
)

// maxPageBytes caps how much of a results page is read.
const maxPageBytes = 4 << 20

// browserUserAgent is presented by both fetchers; the search interface
// serves a degraded page to unknown agents.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is a fetched HTML document.
type Page struct {
	Status int
	Body   string
}

// PageFetcher retrieves a page by URL.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
}

// HTTPFetcher fetches pages with a plain HTTP client.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// Fetch issues a GET and returns the status and body. Non-200 statuses are
// returned as pages, not errors, so the caller can inspect challenge pages.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = browserUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := httpClient(f.Client).Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("reading body: %w", err)
	}
	return Page{Status: resp.StatusCode, Body: string(body)}, nil
}

// BrowserFetcher drives a Chrome session through chromedp. The session is
// started on first use and shared by later fetches so cookies earned by
// solving a challenge persist. It is not safe for concurrent use; the
// resolver serializes every call to an exclusive provider.
type BrowserFetcher struct {
	// Headless hides the window. A visible window is needed when a person
	// must solve challenges.
	Headless bool

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// Fetch navigates to pageURL and returns the rendered document. The browser
// does not expose the HTTP status, so Status is always 200.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	bctx, err := f.session()
	if err != nil {
		return Page{}, err
	}

	// Tie the navigation to the caller's deadline without tearing down the
	// shared session when it expires.
	runCtx, cancel := context.WithCancel(bctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, fmt.Errorf("chromedp: %w", err)
	}
	return Page{Status: http.StatusOK, Body: html}, nil
}

func (f *BrowserFetcher) session() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browserCtx != nil {
		return f.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(browserUserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	f.browserCtx = browserCtx
	f.allocCancel = allocCancel
	f.browserCancel = browserCancel
	return browserCtx, nil
}

// Close shuts the browser down. It is safe to call on an unused fetcher.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browserCtx == nil {
		return nil
	}
	f.browserCancel()
	f.allocCancel()
	f.browserCtx = nil
	return nil
}

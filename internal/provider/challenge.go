// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// ChallengeHandler waits for a person to clear an anti-automation challenge.
// Await returns nil once the challenge is believed solved and an error when
// ctx expires first.
type ChallengeHandler interface {
	Await(ctx context.Context, pageURL string) error
}

var errInputClosed = errors.New("input closed before challenge was confirmed")

// TerminalPrompt asks on Out and waits for a line on In. One goroutine
// reads In for the life of the prompt, so a prompt that timed out does not
// leave a reader behind to swallow the answer to the next one. Lines typed
// while no prompt is showing are discarded.
type TerminalPrompt struct {
	In  io.Reader
	Out io.Writer

	mu      sync.Mutex
	lines   chan struct{}
	readErr error
}

// Await prints the blocked URL and blocks until Enter is pressed or ctx is
// done.
func (t *TerminalPrompt) Await(ctx context.Context, pageURL string) error {
	t.mu.Lock()
	started := t.lines != nil
	if !started {
		t.start()
	}
	lines := t.lines
	t.mu.Unlock()

	if started {
		if err := t.drain(lines); err != nil {
			return err
		}
	}
	fmt.Fprintf(t.Out, "Anti-automation challenge at %s\n", pageURL)
	fmt.Fprintln(t.Out, "Solve it in the browser window, then press Enter to continue...")

	select {
	case _, ok := <-lines:
		if !ok {
			return t.readErr
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *TerminalPrompt) start() {
	lines := make(chan struct{}, 1)
	t.lines = lines
	go func() {
		r := bufio.NewReader(t.In)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				if errors.Is(err, io.EOF) {
					err = errInputClosed
				}
				t.readErr = err
				close(lines)
				return
			}
			lines <- struct{}{}
		}
	}()
}

// drain drops lines entered before the current prompt.
func (t *TerminalPrompt) drain(lines <-chan struct{}) error {
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return t.readErr
			}
		default:
			return nil
		}
	}
}

// challengeForms select the interstitial forms served instead of results.
const challengeForms = `#gs_captcha_f, #gs_captcha_ccl, #captcha-form, form[action*="sorry"], .g-recaptcha, #recaptcha`

// isChallenge reports whether page is an anti-automation interstitial. A
// page that carries results is never one, whatever its text mentions.
func isChallenge(page Page) bool {
	if page.Status == http.StatusForbidden {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return false
	}
	if doc.Find(".gs_ri, #gs_res_ccl, #gs_res_ccl_mid").Length() > 0 {
		return false
	}
	if doc.Find(challengeForms).Length() > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(doc.Find("body").Text()), "unusual traffic")
}

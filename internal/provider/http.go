// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/bibresolve/internal/httputil"
)

// defaultUserAgent is sent when a provider has no configured User-Agent.
const defaultUserAgent = "bibresolve/0.1"

// getJSON issues a GET request and decodes a 200 response into v. A 404 is
// reported as found=false with no error. Every other failure is classified
// into an *Error.
func getJSON(ctx context.Context, client *http.Client, name, reqURL, userAgent string, header http.Header, v any) (bool, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, &Error{Kind: ErrorMalformed, Provider: name, Err: fmt.Errorf("creating request: %w", err)}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return false, transportError(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if perr := statusError(name, resp); perr != nil {
		io.Copy(io.Discard, resp.Body)
		return false, perr
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, &Error{Kind: ErrorMalformed, Provider: name, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return true, nil
}

// statusError classifies a non-200 status. 429 and 503 are throttling,
// 401 and 403 mean the source refuses us, other 5xx are treated like
// timeouts, and any remaining status is an unexpected response.
func statusError(name string, resp *http.Response) *Error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		return &Error{
			Kind:       ErrorRateLimited,
			Provider:   name,
			RetryAfter: httputil.RetryAfter(resp),
			Err:        fmt.Errorf("HTTP %d", code),
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Kind: ErrorBlocked, Provider: name, Err: fmt.Errorf("HTTP %d", code)}
	case code >= 500:
		return &Error{Kind: ErrorTimeout, Provider: name, Err: fmt.Errorf("HTTP %d", code)}
	default:
		return &Error{Kind: ErrorMalformed, Provider: name, Err: fmt.Errorf("HTTP %d", code)}
	}
}

// transportError classifies a failed round trip. Connection failures and
// client timeouts are both transient.
func transportError(name string, err error) *Error {
	return &Error{Kind: ErrorTimeout, Provider: name, Err: fmt.Errorf("request: %w", err)}
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

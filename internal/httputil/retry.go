// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the lookup providers and
// the resolution orchestrator: the backoff policy, context-aware waits and
// Retry-After parsing.
package httputil

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// RetryBaseDelay is the base delay of the default backoff policy. Tests
// override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const (
	defaultMaxAttempts = 3
	defaultMultiplier  = 2.0
	defaultMaxDelay    = 30 * time.Second
)

// Backoff is an exponential backoff policy. Attempts counts every call to a
// provider, so MaxAttempts of 3 means one call plus at most two retries.
type Backoff struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
}

// DefaultBackoff returns the policy used when no retry settings are
// configured: 3 attempts, RetryBaseDelay doubling each time, capped at 30 s.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: defaultMaxAttempts,
		Base:        RetryBaseDelay,
		Multiplier:  defaultMultiplier,
		Cap:         defaultMaxDelay,
	}
}

// BackoffFrom builds a policy from configuration, falling back to the
// defaults for zero values.
func BackoffFrom(cfg types.RetryConfig) Backoff {
	b := DefaultBackoff()
	if cfg.MaxAttempts > 0 {
		b.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		b.Base = cfg.BaseDelay
	}
	if cfg.Multiplier >= 1 {
		b.Multiplier = cfg.Multiplier
	}
	if cfg.MaxDelay > 0 {
		b.Cap = cfg.MaxDelay
	}
	return b
}

// Delay returns the wait before the given retry. Retry 1 waits Base, retry 2
// waits Base*Multiplier, and so on, never exceeding Cap.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(b.Base) * math.Pow(b.Multiplier, float64(retry-1))
	if b.Cap > 0 && d > float64(b.Cap) {
		return b.Cap
	}
	return time.Duration(d)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryAfter parses the Retry-After header of a throttled response. It
// accepts delta-seconds and HTTP dates and returns 0 when the header is
// absent or unusable.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

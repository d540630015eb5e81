// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"time"

	"github.com/pdiddy/bibresolve/internal/httputil"
	"github.com/pdiddy/bibresolve/internal/provider"
)

// action is what the orchestrator does after one provider call.
type action int

const (
	// actionAccept ends the entry with the returned record.
	actionAccept action = iota
	// actionRetry calls the same provider again after a backoff delay.
	actionRetry
	// actionNext falls through to the next provider in priority order.
	actionNext
)

func (a action) String() string {
	switch a {
	case actionAccept:
		return "accept"
	case actionRetry:
		return "retry"
	default:
		return "next"
	}
}

// decide maps an outcome to the next step. attempt is the 1-based number of
// the call that produced out.
//
//	Found                        -> accept
//	rate_limited | timeout       -> retry while attempt < MaxAttempts, then next
//	blocked | malformed_response -> next
//	NotFound                     -> next
func decide(out provider.Outcome, attempt int, policy httputil.Backoff) action {
	switch out.Kind {
	case provider.OutcomeFound:
		return actionAccept
	case provider.OutcomeError:
		if out.Err != nil && out.Err.Kind.Retryable() && attempt < policy.MaxAttempts {
			return actionRetry
		}
		return actionNext
	default:
		return actionNext
	}
}

// retryDelay is the wait before retry number attempt. A server-requested
// Retry-After longer than the backoff wins, bounded by the policy cap.
func retryDelay(out provider.Outcome, attempt int, policy httputil.Backoff) time.Duration {
	d := policy.Delay(attempt)
	if out.Err == nil || out.Err.RetryAfter <= d {
		return d
	}
	if policy.Cap > 0 && out.Err.RetryAfter > policy.Cap {
		return policy.Cap
	}
	return out.Err.RetryAfter
}

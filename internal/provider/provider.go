// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider implements the lookup sources that turn a Query into a
// BibliographicRecord. Every source reports a tagged Outcome (found, not
// found, or a classified error) instead of returning Go errors for lookup
// failures, so callers can drive fallback from a plain decision table.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/bibresolve/pkg/types"
)

// Provider is one lookup source.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, q types.Query) Outcome
}

// Exclusive is implemented by providers whose calls must be serialized
// process-wide because pacing and challenge state are global.
type Exclusive interface {
	Exclusive() bool
}

// IsExclusive reports whether p requires single-flight scheduling.
func IsExclusive(p Provider) bool {
	e, ok := p.(Exclusive)
	return ok && e.Exclusive()
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeFound
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeError:
		return "error"
	default:
		return "not_found"
	}
}

// Outcome is the result of one Resolve call. Record is set only for
// OutcomeFound and Err only for OutcomeError.
type Outcome struct {
	Kind   OutcomeKind
	Record *types.BibliographicRecord
	Err    *Error
}

// Found wraps a record. An incomplete record (no title or no author) is
// reported as not found so nothing fabricated reaches the output.
func Found(rec *types.BibliographicRecord) Outcome {
	if !rec.Complete() {
		return NotFound()
	}
	return Outcome{Kind: OutcomeFound, Record: rec}
}

// NotFound reports that the source has no matching work.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// Failed reports a classified lookup error.
func Failed(provider string, kind ErrorKind, err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: &Error{Kind: kind, Provider: provider, Err: err}}
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorBlocked     ErrorKind = "blocked"
	ErrorTimeout     ErrorKind = "timeout"
	ErrorMalformed   ErrorKind = "malformed_response"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrBlocked     = errors.New("blocked by anti-automation challenge")
	ErrTimeout     = errors.New("timed out")
	ErrMalformed   = errors.New("malformed response")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorRateLimited:
		return ErrRateLimited
	case ErrorBlocked:
		return ErrBlocked
	case ErrorTimeout:
		return ErrTimeout
	default:
		return ErrMalformed
	}
}

// Retryable reports whether the same provider may be tried again.
func (k ErrorKind) Retryable() bool {
	return k == ErrorRateLimited || k == ErrorTimeout
}

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string

	// RetryAfter is the server-requested wait, when one was given.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

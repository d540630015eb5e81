// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/bibresolve/pkg/types"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{MaxAttempts: 5, Base: 100 * time.Millisecond, Multiplier: 2, Cap: 500 * time.Millisecond}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.retry), "retry %d", tt.retry)
	}
}

func TestBackoffFromDefaults(t *testing.T) {
	old := RetryBaseDelay
	RetryBaseDelay = time.Millisecond
	defer func() { RetryBaseDelay = old }()

	b := BackoffFrom(types.RetryConfig{})
	assert.Equal(t, Backoff{MaxAttempts: 3, Base: time.Millisecond, Multiplier: 2, Cap: 30 * time.Second}, b)

	b = BackoffFrom(types.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 3, MaxDelay: time.Minute})
	assert.Equal(t, Backoff{MaxAttempts: 5, Base: time.Second, Multiplier: 3, Cap: time.Minute}, b)
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleepCompletes(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"absent", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"zero", "0", 0},
		{"garbage", "soon", 0},
		{"past date", "Mon, 02 Jan 2006 15:04:05 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, RetryAfter(resp))
		})
	}

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	resp := &http.Response{Header: http.Header{"Retry-After": {future}}}
	got := RetryAfter(resp)
	assert.Greater(t, got, 50*time.Minute)
	assert.Zero(t, RetryAfter(nil))
}

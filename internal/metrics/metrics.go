// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts resolution activity with Prometheus collectors.
// A run is a short-lived batch process, so nothing is served over HTTP; the
// counters are written once, in text exposition format, when the run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bibresolve"

// Metrics holds the collectors for one run. Each instance owns a private
// registry so several can coexist in one process. A nil *Metrics discards
// every observation.
type Metrics struct {
	registry *prometheus.Registry

	// EntriesTotal counts finished entries, labeled by status.
	EntriesTotal *prometheus.CounterVec

	// CacheLookups counts cache reads, labeled by result (hit, miss).
	CacheLookups *prometheus.CounterVec

	// ProviderCalls counts provider invocations, labeled by provider and
	// outcome (found, not_found, rate_limited, blocked, timeout,
	// malformed_response).
	ProviderCalls *prometheus.CounterVec

	// ProviderDuration observes provider call latency in seconds.
	ProviderDuration *prometheus.HistogramVec

	// Retries counts backoff retries, labeled by provider.
	Retries *prometheus.CounterVec

	// ParseSkips counts reference lines that could not be parsed.
	ParseSkips prometheus.Counter

	// Enrichments counts records that gained a DOI from the registry.
	Enrichments prometheus.Counter
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		EntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Reference entries processed, by final status.",
		}, []string{"status"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache reads, by result.",
		}, []string{"result"}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider invocations, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Backoff retries, by provider.",
		}, []string{"provider"}),
		ParseSkips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_skips_total",
			Help:      "Reference lines that could not be parsed.",
		}),
		Enrichments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Records that gained a DOI during enrichment.",
		}),
	}
}

// RecordEntry counts a finished entry.
func (m *Metrics) RecordEntry(status string) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup counts a cache read.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordProviderCall counts one provider invocation and its latency.
func (m *Metrics) RecordProviderCall(provider, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordRetry counts a backoff retry.
func (m *Metrics) RecordRetry(provider string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(provider).Inc()
}

// RecordParseSkips adds n unparseable lines.
func (m *Metrics) RecordParseSkips(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ParseSkips.Add(float64(n))
}

// RecordEnrichment counts a record that gained a DOI.
func (m *Metrics) RecordEnrichment() {
	if m == nil {
		return
	}
	m.Enrichments.Inc()
}

// WriteFile writes every collector to path in Prometheus text format, in
// the form read by the node_exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

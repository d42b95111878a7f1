// Package metrics exposes Prometheus counters for the selection pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons recorded by the selection loop.
const (
	SkipFingerprint = "fingerprint_match"
	SkipCaption     = "caption_similarity"
	SkipDownload    = "download_error"
	SkipHash        = "hash_error"
	SkipCached      = "fingerprint_cached"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	RunsStarted       prometheus.Counter
	RunsSucceeded     prometheus.Counter
	RunsFailed        prometheus.Counter
	CandidatesSkipped *prometheus.CounterVec
	Publishes         *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repost_runs_started_total",
			Help: "Number of selection pipeline runs started.",
		}),
		RunsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repost_runs_succeeded_total",
			Help: "Number of selection pipeline runs that published successfully.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repost_runs_failed_total",
			Help: "Number of selection pipeline runs that ended in error.",
		}),
		CandidatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repost_candidates_skipped_total",
			Help: "Candidates skipped during selection, by reason.",
		}, []string{"reason"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repost_publishes_total",
			Help: "Publish attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
	}

	reg.MustRegister(
		m.RunsStarted,
		m.RunsSucceeded,
		m.RunsFailed,
		m.CandidatesSkipped,
		m.Publishes,
	)

	return m
}

// NewNop returns unregistered collectors, useful for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

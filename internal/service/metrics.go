package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the domain collectors.
type Metrics struct {
	quotaDecisions    *prometheus.CounterVec
	reviewsSubmitted  prometheus.Counter
	recomputeDuration prometheus.Histogram
	firmCache         *prometheus.CounterVec
	usersProvisioned  prometheus.Counter
}

// NewMetrics creates the collectors, registering them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quotaDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_view_decisions_total",
			Help: "Gated review reads by plan and decision.",
		}, []string{"plan", "decision"}),
		reviewsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviews_submitted_total",
			Help: "Reviews stored.",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "firm_aggregate_recompute_duration_seconds",
			Help:    "Time to read a firm's reviews and write its aggregate.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		firmCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firm_cache_requests_total",
			Help: "Firm cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		usersProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "users_provisioned_total",
			Help: "Local user records created on first authenticated use.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.quotaDecisions, m.reviewsSubmitted, m.recomputeDuration, m.firmCache, m.usersProvisioned)
	}
	return m
}

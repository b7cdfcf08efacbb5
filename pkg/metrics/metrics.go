// Package metrics exposes the crawl pipeline's Prometheus instrumentation.
// Components pull the shared registerer via New and record against the
// counters/histograms directly; there is no global package state so tests
// can construct an isolated registry per case.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge/histogram the pipeline emits.
type Metrics struct {
	CrawlJobsTotal       *prometheus.CounterVec
	CrawlJobDuration     *prometheus.HistogramVec
	ArticlesSaved        *prometheus.CounterVec
	ArticlesSkipped      *prometheus.CounterVec
	RetryAttemptsTotal   *prometheus.CounterVec
	BreakerTransitions   *prometheus.CounterVec
	BreakerState         *prometheus.GaugeVec
	ExtractionStrategy   *prometheus.CounterVec
	ResolveStrategy      *prometheus.CounterVec
	AlertsDispatched     *prometheus.CounterVec
	RecoveryActionsTotal *prometheus.CounterVec
	SearchRequestDuration *prometheus.HistogramVec
}

// New registers every metric against reg and returns the bundle. Pass
// prometheus.NewRegistry() in tests, and the default registerer in
// cmd/crawler's main.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CrawlJobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "jobs_total",
			Help:      "Crawl jobs completed, by category and terminal status.",
		}, []string{"category", "status"}),

		CrawlJobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crawler",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of a crawl job from start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"category"}),

		ArticlesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "articles_saved_total",
			Help:      "Articles persisted, by outcome (new/updated/skipped).",
		}, []string{"category", "outcome"}),

		ArticlesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "articles_skipped_total",
			Help:      "Articles discarded before persistence, by reason.",
		}, []string{"category", "reason"}),

		RetryAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "retry_attempts_total",
			Help:      "Retry attempts issued by pkg/retry, by operation and error kind.",
		}, []string{"operation", "error_kind"}),

		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions, by breaker name and resulting state.",
		}, []string{"breaker", "state"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crawler",
			Name:      "breaker_state",
			Help:      "Current breaker state as an integer (0=closed,1=open,2=half-open).",
		}, []string{"breaker"}),

		ExtractionStrategy: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "extraction_strategy_total",
			Help:      "Content extraction attempts, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),

		ResolveStrategy: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "resolve_strategy_total",
			Help:      "Google News URL resolution attempts, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),

		AlertsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "alerts_dispatched_total",
			Help:      "Alerts successfully dispatched, by type and channel.",
		}, []string{"alert_type", "channel"}),

		RecoveryActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "recovery_actions_total",
			Help:      "Automatic job-recovery actions taken, by action and category.",
		}, []string{"action", "category"}),

		SearchRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crawler",
			Name:      "search_request_duration_seconds",
			Help:      "Google News search request latency, by query complexity.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"complexity"}),
	}
}

// BreakerStateValue maps a breaker state name to the gauge value convention
// used by BreakerState (0=closed, 1=open, 2=half-open).
func BreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

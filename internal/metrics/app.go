package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type appMetrics struct {
	contact          *prometheus.CounterVec
	contactDenied    *prometheus.CounterVec
	limiterKeys      prometheus.Gauge
	cacheOps         *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

func newAppMetrics(f promauto.Factory) appMetrics {
	return appMetrics{
		contact: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "contact_submissions_total",
			Help:      "Contact form requests by outcome",
		}, []string{"outcome"}),
		contactDenied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "contact_submissions_rate_limited_total",
			Help:      "Contact submissions refused by the submission limiter, by reason",
		}, []string{"reason"}),
		limiterKeys: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "contact_submission_limiter_keys",
			Help:      "Emails and IPs currently tracked by the submission limiter",
		}),
		cacheOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_operations_total",
			Help:      "Cache-aside lookups by key and result",
		}, []string{"key", "result"}),
		upstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stats_upstream_errors_total",
			Help:      "Failed calls to stats providers",
		}, []string{"provider"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stats_upstream_duration_seconds",
			Help:      "Latency of stats provider calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}
}

// IncContactSubmission counts a contact request by outcome
// (sent, invalid, rate_limited, unconfigured, send_failed).
func (m *ServerMetrics) IncContactSubmission(outcome string) {
	m.app.contact.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) IncSubmissionDenied(reason string) {
	m.app.contactDenied.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) SetSubmissionTracked(n int) {
	m.app.limiterKeys.Set(float64(n))
}

// ObserveCacheOp counts a cache-aside result for a key
// (hit, miss, error, set_error, disabled).
func (m *ServerMetrics) ObserveCacheOp(key, result string) {
	m.app.cacheOps.WithLabelValues(key, result).Inc()
}

func (m *ServerMetrics) IncStatsUpstreamError(provider string) {
	m.app.upstreamErrors.WithLabelValues(provider).Inc()
}

func (m *ServerMetrics) ObserveStatsUpstream(provider string, seconds float64) {
	m.app.upstreamDuration.WithLabelValues(provider).Observe(seconds)
}

// Package metrics owns the Prometheus registry served on the ops port: HTTP
// RED metrics, build info, and counters for the contact form, the stats cache
// and the upstream stats providers.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/addynoven/portfolio-web/internal/version"
)

// Namespace prefixes the application metrics. HTTP and runtime metrics keep
// their conventional unprefixed names.
const Namespace = "portfolio"

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	httpm httpMetrics
	app   appMetrics

	buildInfo       *prometheus.GaugeVec
	panics          prometheus.Counter
	rateLimited     prometheus.Counter
	rateLimitFull   prometheus.Counter
	profilingActive prometheus.Gauge
}

// New builds an isolated registry with the Go and process collectors and
// every metric this service exports. Labels are bounded: route patterns,
// never raw paths.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &ServerMetrics{
		reg:   reg,
		httpm: newHTTPMetrics(f),
		app:   newAppMetrics(f),
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Recovered handler panics",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
		rateLimitFull: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Requests rejected because the limiter was tracking too many IPs",
		}),
		profilingActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "1 while continuous profiling is running",
		}),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }
func (m *ServerMetrics) IncHttpPanic()         { m.panics.Inc() }
func (m *ServerMetrics) IncRateLimitDenied()   { m.rateLimited.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.rateLimitFull.Inc() }

func (m *ServerMetrics) SetProfilingActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.profilingActive.Set(v)
}

// SetBuildInfoFromVersion publishes build metadata. Call once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

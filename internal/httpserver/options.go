package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/addynoven/portfolio-web/internal/health"
	"github.com/addynoven/portfolio-web/internal/httpmw"
	"github.com/addynoven/portfolio-web/internal/log"
)

const (
	defaultPort = 8080

	// largest body any route accepts; the contact route applies its own
	// tighter limit
	defaultMaxBodyBytes = 64 << 10
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	// MaxBodyBytes caps every request body. Default 64KiB.
	MaxBodyBytes int64

	Health    health.Probe
	Readiness health.Probe

	// APIRoutes registers the JSON endpoints on the router.
	APIRoutes func(chi.Router)

	// SiteHandler answers every request no route matched.
	SiteHandler http.Handler
}

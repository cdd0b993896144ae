package opshttp

import (
	"net/http"

	"github.com/addynoven/portfolio-web/internal/health"
)

const defaultPort = 9000

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	// Build is served as JSON on /version when set.
	Build any

	// AllowPublic disables the private network guard.
	AllowPublic bool

	// OnPanic is called after a handler panic is recovered.
	OnPanic func()
}

// Package httpmw provides HTTP middleware for the public-facing server.
//
// httpserver.NewHandler composes them outermost first: security headers,
// request ID, panic recovery, client IP, site-wide rate limiting, OTEL
// tracing, metrics, request-scoped logging, access logging, then the chi
// router with per-route body limits and route annotation.
//
// Query strings, user agents and request bodies are kept out of the
// request-scoped log fields. The contact handler logs submitter email only
// at debug level.
package httpmw

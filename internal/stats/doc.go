// Package stats serves coding activity pulled from GitHub and WakaTime.
//
// Upstream results are cached through cache.GetOrCompute for an hour. When a
// credential is missing or the upstream call fails, the handlers answer 200
// with a static fallback payload carrying an error string; fallbacks are
// never written to the cache.
package stats

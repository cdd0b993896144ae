package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/addynoven/portfolio-web/internal/cache"
	"github.com/addynoven/portfolio-web/internal/httpmw"
	"github.com/addynoven/portfolio-web/internal/log"
)

const DefaultTTL = time.Hour

// GitHubFetcher and WakaTimeFetcher are satisfied by the clients in this
// package and by test stubs.
type GitHubFetcher interface {
	Fetch(ctx context.Context) (GitHubStats, error)
}

type WakaTimeFetcher interface {
	Fetch(ctx context.Context) (WakaTimeStats, error)
}

type Options struct {
	Logger   log.Logger
	Cache    *cache.Aside
	TTL      time.Duration
	GitHub   GitHubFetcher
	WakaTime WakaTimeFetcher
	Now      func() time.Time
}

// API implements GET /api/github-stats and GET /api/wakatime.
type API struct {
	opts   Options
	logger log.Logger
}

func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{opts: opts, logger: opts.Logger}
}

// RegisterRoutes attaches the stats endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("github-stats")).Get("/api/github-stats", api.HandleGitHub)
	r.With(httpmw.Scope("wakatime")).Get("/api/wakatime", api.HandleWakaTime)
}

// HandleGitHub serves cached GitHub stats, or the fallback payload.
func (api *API) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var st GitHubStats
	var err error
	if api.opts.GitHub == nil {
		err = ErrNotConfigured
	} else {
		st, err = cache.GetOrCompute(ctx, api.opts.Cache, GitHubCacheKey, api.opts.TTL, api.opts.GitHub.Fetch)
	}
	if err != nil {
		msg := api.fallbackReason(ctx, ProviderGitHub, err, GitHubNoTokenMsg, GitHubFailedMsg)
		st = GitHubFallback(api.opts.Now(), msg)
	}
	api.writeJSON(ctx, w, st)
}

// HandleWakaTime serves cached WakaTime stats, or the fallback payload.
func (api *API) HandleWakaTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var st WakaTimeStats
	var err error
	if api.opts.WakaTime == nil {
		err = ErrNotConfigured
	} else {
		st, err = cache.GetOrCompute(ctx, api.opts.Cache, WakaTimeCacheKey, api.opts.TTL, api.opts.WakaTime.Fetch)
	}
	if err != nil {
		msg := api.fallbackReason(ctx, ProviderWakaTime, err, WakaTimeNoKeyMsg, WakaTimeFailedMsg)
		st = WakaTimeFallback(msg)
	}
	api.writeJSON(ctx, w, st)
}

// fallbackReason logs why live stats are unavailable and picks the message
// shown to the client.
func (api *API) fallbackReason(ctx context.Context, provider string, err error, unconfigured, failed string) string {
	L := log.FromContext(ctx)
	if errors.Is(err, ErrNotConfigured) {
		L.Warn(ctx, "stats provider not configured, serving fallback", "provider", provider)
		return unconfigured
	}
	L.Error(ctx, err, "stats fetch failed, serving fallback", "provider", provider)
	return failed
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addynoven/portfolio-web/internal/cache"
)

type stubGitHub struct {
	calls atomic.Int32
	st    GitHubStats
	err   error
}

func (s *stubGitHub) Fetch(context.Context) (GitHubStats, error) {
	s.calls.Add(1)
	return s.st, s.err
}

type stubWakaTime struct {
	calls atomic.Int32
	st    WakaTimeStats
	err   error
}

func (s *stubWakaTime) Fetch(context.Context) (WakaTimeStats, error) {
	s.calls.Add(1)
	return s.st, s.err
}

var fixedNow = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

func newRedisCache(t *testing.T) (*cache.Aside, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewAside(store), mr
}

func serve(t *testing.T, api *API, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeGitHub(t *testing.T, rec *httptest.ResponseRecorder) GitHubStats {
	t.Helper()
	var st GitHubStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decodeWakaTime(t *testing.T, rec *httptest.ResponseRecorder) WakaTimeStats {
	t.Helper()
	var st WakaTimeStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func TestHandleGitHub_LiveThenCached(t *testing.T) {
	aside, mr := newRedisCache(t)
	gh := &stubGitHub{st: GitHubStats{TotalContributions: 321, TotalStars: 9, Year: 2026, TopLanguages: []string{"Go"}}}
	api := NewAPI(Options{Cache: aside, GitHub: gh, Now: fixedNow})

	rec := serve(t, api, "/api/github-stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	st := decodeGitHub(t, rec)
	assert.Equal(t, 321, st.TotalContributions)
	assert.Nil(t, st.Error)

	assert.True(t, mr.Exists(GitHubCacheKey))
	assert.Equal(t, DefaultTTL, mr.TTL(GitHubCacheKey))

	rec = serve(t, api, "/api/github-stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 321, decodeGitHub(t, rec).TotalContributions)
	assert.Equal(t, int32(1), gh.calls.Load(), "second request should be served from cache")
}

func TestHandleGitHub_NotConfigured(t *testing.T) {
	aside, mr := newRedisCache(t)
	gh := &stubGitHub{err: ErrNotConfigured}
	api := NewAPI(Options{Cache: aside, GitHub: gh, Now: fixedNow})

	rec := serve(t, api, "/api/github-stats")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeGitHub(t, rec)
	require.NotNil(t, st.Error)
	assert.Equal(t, GitHubNoTokenMsg, *st.Error)
	assert.Equal(t, 699, st.TotalContributions)
	assert.Equal(t, 2026, st.Year)
	assert.False(t, mr.Exists(GitHubCacheKey), "fallback must not be cached")
}

func TestHandleGitHub_NilFetcher(t *testing.T) {
	api := NewAPI(Options{Now: fixedNow})

	st := decodeGitHub(t, serve(t, api, "/api/github-stats"))
	require.NotNil(t, st.Error)
	assert.Equal(t, GitHubNoTokenMsg, *st.Error)
}

func TestHandleGitHub_UpstreamFailureNotCached(t *testing.T) {
	aside, mr := newRedisCache(t)
	gh := &stubGitHub{err: errors.New("github graphql: status 502")}
	api := NewAPI(Options{Cache: aside, GitHub: gh, Now: fixedNow})

	st := decodeGitHub(t, serve(t, api, "/api/github-stats"))
	require.NotNil(t, st.Error)
	assert.Equal(t, GitHubFailedMsg, *st.Error)
	assert.False(t, mr.Exists(GitHubCacheKey))

	// recovery is picked up on the next request
	gh.err = nil
	gh.st = GitHubStats{TotalContributions: 5}
	st = decodeGitHub(t, serve(t, api, "/api/github-stats"))
	assert.Nil(t, st.Error)
	assert.Equal(t, 5, st.TotalContributions)
	assert.Equal(t, int32(2), gh.calls.Load())
}

func TestHandleGitHub_NoCache(t *testing.T) {
	gh := &stubGitHub{st: GitHubStats{TotalContributions: 1}}
	api := NewAPI(Options{GitHub: gh, Now: fixedNow})

	serve(t, api, "/api/github-stats")
	serve(t, api, "/api/github-stats")
	assert.Equal(t, int32(2), gh.calls.Load())
}

func TestHandleWakaTime(t *testing.T) {
	aside, mr := newRedisCache(t)
	wk := &stubWakaTime{st: WakaTimeStats{TotalHuman: "12 hrs", DailyAverage: "1 hr 40 mins", TopLanguage: "Go", TopLanguagePercent: 55.5}}
	api := NewAPI(Options{Cache: aside, WakaTime: wk, TTL: 10 * time.Minute})

	st := decodeWakaTime(t, serve(t, api, "/api/wakatime"))
	assert.Equal(t, "Go", st.TopLanguage)
	assert.Nil(t, st.Error)
	assert.Equal(t, 10*time.Minute, mr.TTL(WakaTimeCacheKey))

	mr.FastForward(11 * time.Minute)
	serve(t, api, "/api/wakatime")
	assert.Equal(t, int32(2), wk.calls.Load(), "expired entry should be refetched")
}

func TestHandleWakaTime_Fallbacks(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", ErrNotConfigured, WakaTimeNoKeyMsg},
		{"upstream failure", errors.New("wakatime: status 500"), WakaTimeFailedMsg},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aside, mr := newRedisCache(t)
			api := NewAPI(Options{Cache: aside, WakaTime: &stubWakaTime{err: tc.err}})

			rec := serve(t, api, "/api/wakatime")
			require.Equal(t, http.StatusOK, rec.Code)
			st := decodeWakaTime(t, rec)
			require.NotNil(t, st.Error)
			assert.Equal(t, tc.want, *st.Error)
			assert.Equal(t, "20+ hrs", st.TotalHuman)
			assert.Equal(t, "TypeScript", st.TopLanguage)
			assert.False(t, mr.Exists(WakaTimeCacheKey))
		})
	}
}

func TestHandleStats_RedisDown(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	store, err := cache.NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	aside := cache.NewAside(store)
	gh := &stubGitHub{st: GitHubStats{TotalContributions: 42}}
	api := NewAPI(Options{Cache: aside, GitHub: gh})

	st := decodeGitHub(t, serve(t, api, "/api/github-stats"))
	assert.Nil(t, st.Error)
	assert.Equal(t, 42, st.TotalContributions)
}

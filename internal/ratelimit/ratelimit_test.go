package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/addynoven/portfolio-web/internal/httpmw"
)

// fakeClock is advanced by hand; the limiter's buckets refill against it.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func (l *IPLimiter) allow(ip string) bool {
	ok, _ := l.take(ip)
	return ok
}

func newTestLimiter(t *testing.T, opts ...Option) (*IPLimiter, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	base := []Option{WithRate(1, 3), WithTTL(time.Minute), WithNow(clk.now)}
	return New(ctx, append(base, opts...)...), clk
}

func TestIPLimiter_BurstThenRefill(t *testing.T) {
	l, clk := newTestLimiter(t)

	for i := range 3 {
		if !l.allow("203.0.113.7") {
			t.Fatalf("request %d inside burst denied", i+1)
		}
	}
	ok, wait := l.take("203.0.113.7")
	if ok || wait != time.Second {
		t.Fatalf("take after burst = %v, %v; want denied with 1s wait", ok, wait)
	}
	// a denial must not consume the token it was waiting for
	clk.advance(time.Second)
	if !l.allow("203.0.113.7") {
		t.Fatal("token not refilled after 1s")
	}
	if l.allow("203.0.113.7") {
		t.Fatal("second request after a single refill allowed")
	}
}

func TestIPLimiter_SeparateBuckets(t *testing.T) {
	l, _ := newTestLimiter(t)
	for range 3 {
		l.allow("203.0.113.7")
	}
	if l.allow("203.0.113.7") {
		t.Fatal("first ip should be exhausted")
	}
	if !l.allow("198.51.100.2") {
		t.Fatal("second ip shares the first ip's bucket")
	}
}

func TestIPLimiter_DenialCallbacks(t *testing.T) {
	var first, every atomic.Int32
	l, _ := newTestLimiter(t,
		WithOnFirstDenied(func(string) { first.Add(1) }),
		WithOnDenied(func(string) { every.Add(1) }),
	)

	for range 8 {
		l.allow("203.0.113.7")
	}
	if first.Load() != 1 || every.Load() != 5 {
		t.Fatalf("first = %d, every = %d; want 1, 5", first.Load(), every.Load())
	}
}

func TestIPLimiter_Capacity(t *testing.T) {
	var full atomic.Int32
	l, _ := newTestLimiter(t, WithMaxVisitors(2), WithOnCapacity(func() { full.Add(1) }))

	if !l.allow("10.0.0.1") || !l.allow("10.0.0.2") {
		t.Fatal("first two visitors should be admitted")
	}
	if ok, wait := l.take("10.0.0.3"); ok || wait != 0 {
		t.Fatalf("third visitor = %v, %v; want refused with no wait", ok, wait)
	}
	if !l.allow("10.0.0.1") {
		t.Fatal("known visitor refused at capacity")
	}
	if full.Load() != 1 || l.Len() != 2 {
		t.Fatalf("capacity calls = %d, tracked = %d", full.Load(), l.Len())
	}
}

func TestIPLimiter_Sweep(t *testing.T) {
	var first atomic.Int32
	l, clk := newTestLimiter(t, WithOnFirstDenied(func(string) { first.Add(1) }))

	for range 4 {
		l.allow("203.0.113.7")
	}
	clk.advance(30 * time.Second)
	l.allow("198.51.100.2")

	clk.advance(45 * time.Second)
	if n := l.sweep(clk.now()); n != 1 || l.Len() != 1 {
		t.Fatalf("sweep removed %d, %d left; want 1, 1", n, l.Len())
	}

	// an evicted visitor starts fresh and is reported again
	for range 4 {
		l.allow("203.0.113.7")
	}
	if first.Load() != 2 {
		t.Fatalf("first-denial reports = %d, want 2", first.Load())
	}
}

func TestNew_Defaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New(ctx)
	if l.limit != DefaultRate || l.burst != DefaultBurst || l.idleTTL != DefaultIdleTTL || l.maxVisitors != DefaultMaxVisitors {
		t.Fatalf("defaults = %v/%d/%v/%d", l.limit, l.burst, l.idleTTL, l.maxVisitors)
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(t, WithRate(0.5, 2))

	var reached atomic.Int32
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached.Add(1)
	}))
	call := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/contact", http.NoBody)
		r = r.WithContext(httpmw.WithClientIP(r.Context(), ip))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := range 2 {
		if w := call("203.0.113.7"); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i+1, w.Code)
		}
	}

	w := call("203.0.113.7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if w.Body.String() != `{"error":"too many requests"}` {
		t.Errorf("body = %q", w.Body.String())
	}
	if reached.Load() != 2 {
		t.Errorf("handler reached %d times, want 2", reached.Load())
	}
}

func TestMiddleware_CapacityRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(t, WithMaxVisitors(1))
	h := l.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r = r.WithContext(httpmw.WithClientIP(r.Context(), ip))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if ip == "10.0.0.2" && (w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "30") {
			t.Fatalf("full table: %d, Retry-After %q", w.Code, w.Header().Get("Retry-After"))
		}
	}
}

package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/addynoven/portfolio-web/internal/httpmw"
)

const (
	DefaultRate        = 10
	DefaultBurst       = 30
	DefaultIdleTTL     = 5 * time.Minute
	DefaultMaxVisitors = 100_000
)

// visitor is one client IP's bucket. warned is reset when the visitor is
// evicted, so a returning abuser is logged again.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
	warned   bool
}

// IPLimiter is a per-IP token bucket. Idle visitors are evicted in the
// background; once maxVisitors are tracked, unseen IPs are refused outright.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit       rate.Limit
	burst       int
	idleTTL     time.Duration
	maxVisitors int
	now         func() time.Time

	onFirstDenied func(ip string)
	onDenied      func(ip string)
	onCapacity    func()
}

type Option func(*IPLimiter)

// WithRate sets the refill rate and bucket size: WithRate(10, 50) admits a
// burst of 50, then 10 per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) { l.limit, l.burst = rate.Limit(perSecond), burst }
}

// WithTTL sets how long an idle IP is kept before eviction.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) { l.idleTTL = d }
}

// WithMaxVisitors caps tracked IPs. n <= 0 removes the cap.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) { l.maxVisitors = n }
}

// WithNow replaces time.Now.
func WithNow(now func() time.Time) Option {
	return func(l *IPLimiter) { l.now = now }
}

// WithOnFirstDenied is called once per visitor lifetime, on its first denial.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied is called on every denial.
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onDenied = fn }
}

// WithOnCapacity is called whenever an unseen IP is refused because the
// visitor table is full.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) { l.onCapacity = fn }
}

// New returns a limiter whose eviction loop runs until ctx is cancelled.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		limit:       DefaultRate,
		burst:       DefaultBurst,
		idleTTL:     DefaultIdleTTL,
		maxVisitors: DefaultMaxVisitors,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	go l.evictLoop(ctx)
	return l
}

// take spends one token for ip. On denial it returns how long until a token
// is available; zero means the visitor table was full.
func (l *IPLimiter) take(ip string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			l.mu.Unlock()
			if l.onCapacity != nil {
				l.onCapacity()
			}
			return false, 0
		}
		v = &visitor{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.bucket.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	if res.OK() && wait == 0 {
		l.mu.Unlock()
		return true, 0
	}
	res.CancelAt(now)
	first := !v.warned
	v.warned = true
	l.mu.Unlock()

	// callbacks run unlocked
	if first && l.onFirstDenied != nil {
		l.onFirstDenied(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
	return false, wait
}

// sweep evicts visitors idle for longer than the TTL and reports how many.
func (l *IPLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, ip)
			n++
		}
	}
	return n
}

func (l *IPLimiter) evictLoop(ctx context.Context) {
	t := time.NewTicker(l.idleTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.sweep(l.now())
		}
	}
}

// Len is the number of tracked IPs.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware answers 429 with a JSON body and Retry-After for clients over
// their rate.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.take(httpmw.ClientIPFromContext(r.Context()))
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		if wait <= 0 {
			wait = l.idleTTL / 2
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Retry-After", strconv.FormatInt(RetryAfterSeconds(wait), 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"too many requests"}`))
	})
}

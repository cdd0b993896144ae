package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Reason identifies which keyspace denied a submission.
type Reason string

const (
	ReasonNone  Reason = ""
	ReasonEmail Reason = "email_limit"
	ReasonIP    Reason = "ip_limit"
)

const (
	DefaultEmailLimit    = 1
	DefaultIPLimit       = 3
	DefaultWindow        = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Result is the outcome of SubmissionLimiter.Check.
// RetryAfter is only set when Allowed is false.
type Result struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration
}

// entry is the submission history of one email or ip inside the current window
type entry struct {
	count        int
	firstRequest time.Time
}

// SubmissionLimiter counts accepted submissions per normalized email and per
// client ip. Check never mutates state; callers Record only after the
// submission actually went through.
type SubmissionLimiter struct {
	mu     sync.Mutex
	emails map[string]*entry
	ips    map[string]*entry

	emailLimit    int
	ipLimit       int
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	onDenied      func(reason Reason)
}

type SubmissionOption func(*SubmissionLimiter)

// WithLimits sets the max accepted submissions per window for each keyspace.
func WithLimits(perEmail, perIP int) SubmissionOption {
	return func(l *SubmissionLimiter) {
		l.emailLimit = perEmail
		l.ipLimit = perIP
	}
}

// WithWindow sets the window length shared by both keyspaces.
func WithWindow(d time.Duration) SubmissionOption {
	return func(l *SubmissionLimiter) {
		l.window = d
	}
}

// WithSweepInterval sets how often expired entries are deleted.
func WithSweepInterval(d time.Duration) SubmissionOption {
	return func(l *SubmissionLimiter) {
		l.sweepInterval = d
	}
}

// WithClock replaces time.Now, tests use it to move past the window.
func WithClock(now func() time.Time) SubmissionOption {
	return func(l *SubmissionLimiter) {
		l.now = now
	}
}

// WithOnSubmissionDenied sets a callback invoked on every denied Check.
func WithOnSubmissionDenied(fn func(reason Reason)) SubmissionOption {
	return func(l *SubmissionLimiter) {
		l.onDenied = fn
	}
}

// NewSubmissionLimiter creates a limiter and starts the sweep goroutine,
// which exits when ctx is cancelled.
func NewSubmissionLimiter(ctx context.Context, opts ...SubmissionOption) *SubmissionLimiter {
	l := &SubmissionLimiter{
		emails:        make(map[string]*entry),
		ips:           make(map[string]*entry),
		emailLimit:    DefaultEmailLimit,
		ipLimit:       DefaultIPLimit,
		window:        DefaultWindow,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.sweepInterval > 0 {
		go l.sweepLoop(ctx)
	}
	return l
}

// NormalizeEmail lowercases and trims an address so " Foo@Bar.com " and
// "foo@bar.com" share a counter.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check reports whether a submission from (email, ip) may proceed.
// The email keyspace is consulted first, so when both would deny the
// email reason wins. Expired entries are treated as absent.
func (l *SubmissionLimiter) Check(email, ip string) Result {
	now := l.now()
	key := NormalizeEmail(email)

	l.mu.Lock()
	res := l.denied(l.emails[key], l.emailLimit, now, ReasonEmail)
	if res.Allowed {
		res = l.denied(l.ips[ip], l.ipLimit, now, ReasonIP)
	}
	l.mu.Unlock()

	if !res.Allowed && l.onDenied != nil {
		l.onDenied(res.Reason)
	}
	return res
}

func (l *SubmissionLimiter) denied(e *entry, limit int, now time.Time, reason Reason) Result {
	if e == nil {
		return Result{Allowed: true}
	}
	elapsed := now.Sub(e.firstRequest)
	if elapsed >= l.window || e.count < limit {
		return Result{Allowed: true}
	}
	return Result{
		Allowed:    false,
		Reason:     reason,
		RetryAfter: l.window - elapsed,
	}
}

// Record counts one accepted submission against both keyspaces. Entries
// whose window has elapsed restart at count 1.
func (l *SubmissionLimiter) Record(email, ip string) {
	now := l.now()
	key := NormalizeEmail(email)

	l.mu.Lock()
	l.bump(l.emails, key, now)
	l.bump(l.ips, ip, now)
	l.mu.Unlock()
}

func (l *SubmissionLimiter) bump(m map[string]*entry, key string, now time.Time) {
	if e, ok := m[key]; ok && now.Sub(e.firstRequest) < l.window {
		e.count++
		return
	}
	m[key] = &entry{count: 1, firstRequest: now}
}

// Sweep deletes every entry older than the window and returns how many were removed.
func (l *SubmissionLimiter) Sweep() int {
	now := l.now()
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range []map[string]*entry{l.emails, l.ips} {
		for k, e := range m {
			if now.Sub(e.firstRequest) > l.window {
				delete(m, k)
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of tracked emails and ips.
func (l *SubmissionLimiter) Len() (emails, ips int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.emails), len(l.ips)
}

func (l *SubmissionLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

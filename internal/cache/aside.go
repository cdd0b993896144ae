package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/xerrors"
)

const tracerName = "portfolio/cache"

// DefaultFetchTimeout bounds a shared fetch, which outlives the request
// that started it.
const DefaultFetchTimeout = 30 * time.Second

// Observer results.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultError    = "error"
	ResultSetError = "set_error"
	ResultDisabled = "disabled"
)

// Aside wraps a Store with read-through semantics. A nil *Aside, or one
// built without a store, is valid and never caches.
type Aside struct {
	store        Store
	logger       log.Logger
	observe      func(key, result string)
	fetchTimeout time.Duration
	group        singleflight.Group
}

// flight is the shared result of one fetch. enc is nil when the value could
// not be encoded; callers then receive val as is.
type flight struct {
	enc []byte
	val any
}

type Option func(*Aside)

func WithLogger(l log.Logger) Option {
	return func(a *Aside) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver registers a callback invoked once per lookup outcome,
// typically a metrics counter.
func WithObserver(fn func(key, result string)) Option {
	return func(a *Aside) { a.observe = fn }
}

// WithFetchTimeout bounds each shared fetch and its cache write.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aside) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

func NewAside(store Store, opts ...Option) *Aside {
	a := &Aside{store: store, logger: log.Nop(), fetchTimeout: DefaultFetchTimeout}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Enabled reports whether a store is configured.
func (a *Aside) Enabled() bool {
	return a != nil && a.store != nil
}

// GetOrCompute returns the cached value for key, or calls fetch on a miss and
// stores its JSON encoding for ttl. Store failures are logged and degrade to
// fetch; only fetch errors reach the caller, and they are never cached.
//
// Concurrent misses for the same key share one fetch. The fetch runs detached
// from any single caller's cancellation, bounded by the fetch timeout, and
// each caller stops waiting when its own ctx is done.
func GetOrCompute[T any](ctx context.Context, a *Aside, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if !a.Enabled() {
		if a != nil {
			a.record(key, ResultDisabled)
		}
		return fetch(ctx)
	}

	var zero T
	if b, ok := a.lookup(ctx, key); ok {
		var v T
		err := json.Unmarshal(b, &v)
		if err == nil {
			a.record(key, ResultHit)
			return v, nil
		}
		a.logger.Warn(ctx, "cache value undecodable, refetching", "cache.key", key, "err", err)
		a.record(key, ResultError)
	}

	ch := a.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.fetchTimeout)
		defer cancel()

		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			a.logger.Warn(fctx, "cache value unencodable, serving uncached", "cache.key", key, "err", err)
			return flight{val: v}, nil
		}
		a.write(fctx, key, b, ttl)
		return flight{enc: b}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}

	f := res.Val.(flight)
	if f.enc == nil {
		return f.val.(T), nil
	}
	// each caller decodes its own copy so shared flights never alias
	var v T
	if err := json.Unmarshal(f.enc, &v); err != nil {
		return zero, xerrors.Wrapf(err, "decode cache value %q", key)
	}
	return v, nil
}

// lookup reads key from the store. ok is false on a miss or a store error.
func (a *Aside) lookup(ctx context.Context, key string) ([]byte, bool) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	b, err := a.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss), err == nil && len(b) == 0:
		span.SetAttributes(attribute.Bool("cache.hit", false))
		a.logger.Debug(ctx, "cache miss", "cache.key", key)
		a.record(key, ResultMiss)
		return nil, false
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache get failed")
		a.logger.Warn(ctx, "cache get failed", "cache.key", key, "err", err)
		a.record(key, ResultError)
		return nil, false
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return b, true
}

func (a *Aside) write(ctx context.Context, key string, b []byte, ttl time.Duration) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.set",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl/time.Second)),
		),
	)
	defer span.End()

	if err := a.store.Set(ctx, key, b, ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache set failed")
		a.logger.Warn(ctx, "cache set failed", "cache.key", key, "err", err)
		a.record(key, ResultSetError)
		return
	}
	a.logger.Debug(ctx, "cache stored", "cache.key", key, "ttl", ttl.String())
}

func (a *Aside) record(key, result string) {
	if a.observe != nil {
		a.observe(key, result)
	}
}

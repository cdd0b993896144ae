package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// errorDetail controls how much of an error chain Error records carry.
type errorDetail struct {
	links    bool
	maxLinks int
}

type slogLogger struct {
	h      slog.Handler
	fields []slog.Attr
	detail errorDetail
}

func newSlog(opts Options) (Logger, error) {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}
	maxLinks := opts.MaxErrorLinks
	if maxLinks <= 0 {
		maxLinks = 8
	}

	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: true}
	var base slog.Handler = slog.NewTextHandler(out, ho)
	if opts.JsonFormat {
		base = slog.NewJSONHandler(out, ho)
	}

	return &slogLogger{
		h:      contextHandler{Handler: base, stackAt: opts.stackLevel()},
		fields: kvAttrs(baseFields(opts)),
		detail: errorDetail{links: opts.IncludeErrorLinks, maxLinks: maxLinks},
	}, nil
}

// kvAttrs pairs up kv, skipping entries whose key is not a string and a
// trailing key with no value.
func kvAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2)
	for len(kv) >= 2 {
		if key, ok := kv[0].(string); ok {
			attrs = append(attrs, slog.Any(key, kv[1]))
		}
		kv = kv[2:]
	}
	return attrs
}

func (l *slogLogger) With(kv ...any) Logger {
	child := *l
	// fresh backing array so siblings never overwrite each other
	child.fields = append(append([]slog.Attr(nil), l.fields...), kvAttrs(kv)...)
	return &child
}

func (l *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, slog.LevelDebug, msg, kv)
}

func (l *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, slog.LevelInfo, msg, kv)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, slog.LevelWarn, msg, kv)
}

func (l *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	l.log(ctx, slog.LevelError, msg, append(kv, errorKV(err, l.detail.links, l.detail.maxLinks)...))
}

func (l *slogLogger) Sync() error { return nil }

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, kv []any) {
	if !l.h.Enabled(ctx, level) {
		return
	}
	// skip runtime.Callers, log and the level method
	var pc [1]uintptr
	runtime.Callers(3, pc[:])

	rec := slog.NewRecord(time.Now(), level, msg, pc[0])
	rec.AddAttrs(l.fields...)
	rec.AddAttrs(kvAttrs(kv)...)
	_ = l.h.Handle(ctx, rec)
}

// contextHandler stamps the active span onto every record and a stack trace
// onto records at or above stackAt.
type contextHandler struct {
	slog.Handler
	stackAt slog.Level
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		rec.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	if rec.Level >= h.stackAt {
		rec.AddAttrs(slog.String("stack", stackFor(recordErr(rec), 1)))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs), stackAt: h.stackAt}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name), stackAt: h.stackAt}
}

// recordErr returns the error logged under "err", if any.
func recordErr(rec slog.Record) error {
	var err error
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key != "err" {
			return true
		}
		err, _ = a.Value.Any().(error)
		return false
	})
	return err
}

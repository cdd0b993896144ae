package log

import (
	"context"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type zeroLogger struct {
	z                 zerolog.Logger
	stackLevel        slog.Level
	includeErrorLinks bool
	maxErrorLinks     int
}

func newZerolog(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if !opts.JsonFormat {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = 8
	}

	z := zerolog.New(w).
		Level(zeroLevel(opts.Level)).
		With().
		Timestamp().
		Fields(baseFields(opts)).
		Logger()

	return &zeroLogger{
		z:                 z,
		stackLevel:        opts.stackLevel(),
		includeErrorLinks: opts.IncludeErrorLinks,
		maxErrorLinks:     opts.MaxErrorLinks,
	}, nil
}

func zeroLevel(l slog.Level) zerolog.Level {
	switch {
	case l < slog.LevelInfo:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zeroLogger) With(kv ...any) Logger {
	c := *l
	c.z = l.z.With().Fields(pairs(kv)).Logger()
	return &c
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelDebug, nil, msg, kv)
}

func (l *zeroLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelInfo, nil, msg, kv)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.emit(ctx, slog.LevelWarn, nil, msg, kv)
}

func (l *zeroLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	l.emit(ctx, slog.LevelError, err, msg, kv)
}

func (l *zeroLogger) Sync() error { return nil }

func (l *zeroLogger) emit(ctx context.Context, lvl slog.Level, err error, msg string, kv []any) {
	ev := l.z.WithLevel(zeroLevel(lvl))
	if ev == nil {
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	ev = ev.Fields(pairs(kv))
	if err != nil {
		ev = ev.Fields(pairs(errorKV(err, l.includeErrorLinks, l.maxErrorLinks)))
	}
	if lvl >= l.stackLevel {
		ev = ev.Str("stack", stackFor(err, 2))
	}
	ev.Msg(msg)
}

// pairs trims kv to well-formed string-keyed pairs, zerolog rejects the rest wholesale.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		if _, ok := kv[i].(string); ok {
			out = append(out, kv[i], kv[i+1])
		}
	}
	return out
}

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

// Backend selects the structured logging implementation behind Logger.
type Backend string

const (
	BackendSlog    Backend = "slog"
	BackendZerolog Backend = "zerolog"
)

type Options struct {
	App               string
	Version           string
	Commit            string
	Backend           Backend
	Level             slog.Level
	StacktraceLevel   *slog.Level // nil selects error
	JsonFormat        bool
	MaxErrorLinks     int
	IncludeErrorLinks bool
	Writer            io.Writer
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New builds a Logger for the configured backend, slog when unset.
func New(opts Options) (Logger, error) {
	switch opts.Backend {
	case "", BackendSlog:
		return newSlog(opts)
	case BackendZerolog:
		return newZerolog(opts)
	}
	return nil, fmt.Errorf("unknown log backend %q (valid backends are slog|zerolog)", opts.Backend)
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}

func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if b == BackendSlog || b == BackendZerolog {
		return b, nil
	}
	return "", fmt.Errorf("unknown log backend %q (valid backends are slog|zerolog)", s)
}

// stackLevel is the lowest level that carries a stack trace.
func (o Options) stackLevel() slog.Level {
	if o.StacktraceLevel == nil {
		return slog.LevelError
	}
	return *o.StacktraceLevel
}

// baseFields are attached to every record regardless of backend.
func baseFields(opts Options) []any {
	kv := []any{"app", opts.App}
	if opts.Version != "" {
		kv = append(kv, "version", opts.Version)
	}
	if opts.Commit != "" {
		kv = append(kv, "commit", opts.Commit)
	}
	return kv
}

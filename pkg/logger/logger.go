package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelCritical = slog.Level(12)

	FormatJSON = "json"
	FormatText = "text"
)

type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
	Critical(message string, args ...any)
	BusinessError(message string, err error, args ...any)
	InternalError(message string, err error, args ...any)
	With(args ...any) Logger
}

// Options configures New. Service, when set, is attached to every record.
type Options struct {
	Level     slog.Level
	Format    string
	Service   string
	AddSource bool
}

type slogLogger struct {
	base *slog.Logger
}

// NewFromEnv reads ENV, LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func NewFromEnv(service string) Logger {
	env := normalize(os.Getenv("ENV"))
	return New(os.Stdout, Options{
		Level:     ParseLevel(os.Getenv("LOG_LEVEL"), env),
		Format:    ParseFormat(os.Getenv("LOG_FORMAT")),
		Service:   service,
		AddSource: normalize(os.Getenv("LOG_SOURCE")) == "true",
	})
}

func New(output io.Writer, opts Options) Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		AddSource:   opts.AddSource,
		ReplaceAttr: replaceLevel,
	}

	var handler slog.Handler
	if normalize(opts.Format) == FormatText {
		handler = slog.NewTextHandler(output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(output, handlerOpts)
	}

	base := slog.New(handler)
	if opts.Service != "" {
		base = base.With("service", opts.Service)
	}
	return &slogLogger{base: base}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return New(io.Discard, Options{Level: LevelCritical + 1, Format: FormatText})
}

func (l *slogLogger) Debug(message string, args ...any) {
	l.base.Debug(message, args...)
}

func (l *slogLogger) Info(message string, args ...any) {
	l.base.Info(message, args...)
}

func (l *slogLogger) Warn(message string, args ...any) {
	l.base.Warn(message, args...)
}

func (l *slogLogger) Error(message string, args ...any) {
	l.base.Error(message, args...)
}

func (l *slogLogger) Critical(message string, args ...any) {
	l.base.Log(context.Background(), LevelCritical, message, args...)
}

// BusinessError logs rejected requests at warn. A nil err is not logged.
func (l *slogLogger) BusinessError(message string, err error, args ...any) {
	if err == nil {
		return
	}
	l.base.Warn(message, withErr(err, args)...)
}

// InternalError logs failures at error. A nil err is not logged.
func (l *slogLogger) InternalError(message string, err error, args ...any) {
	if err == nil {
		return
	}
	l.base.Error(message, withErr(err, args)...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{base: l.base.With(args...)}
}

type ctxKey struct{}

// IntoContext stores a request scoped logger.
func IntoContext(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored by IntoContext, or fallback.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(Logger); ok && log != nil {
			return log
		}
	}
	return fallback
}

func ParseLevel(value string, env string) slog.Level {
	switch normalize(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical", "fatal":
		return LevelCritical
	}
	if env == "development" || env == "local" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func ParseFormat(value string) string {
	if normalize(value) == FormatText {
		return FormatText
	}
	return FormatJSON
}

func withErr(err error, args []any) []any {
	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, "err", err)
	return append(attrs, args...)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func replaceLevel(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	if level, ok := attr.Value.Any().(slog.Level); ok && level >= LevelCritical {
		attr.Value = slog.StringValue("CRITICAL")
	}
	return attr
}

// Package logger builds the process slog.Logger and carries it through
// request contexts, with field helpers for gradebook entities.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the log encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseLevel parses a level name. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool

	// Attrs are attached to every record, e.g. service name and version.
	Attrs []slog.Attr
}

// DefaultOptions returns JSON at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
	}
}

// New creates a logger. JSON suits log aggregators, text is easier to read
// in a terminal.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	if len(opts.Attrs) > 0 {
		handler = handler.WithAttrs(opts.Attrs)
	}

	return slog.New(handler)
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// Field helpers.
func RequestID(id string) slog.Attr     { return slog.String(RequestIDKey, id) }
func StudentID(id int64) slog.Attr      { return slog.Int64("student_id", id) }
func Subject(s string) slog.Attr        { return slog.String("subject", s) }
func Department(d string) slog.Attr     { return slog.String("department", d) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func Operation(name string) slog.Attr   { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }
func Status(code int) slog.Attr         { return slog.Int("status", code) }

// Err creates an error field.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Package logger builds the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

type commandKey struct{}

// WithCommand returns a copy of ctx whose log records name the CLI command being run.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, commandKey{}, name)
}

// Command returns the command name stored by WithCommand, or "".
func Command(ctx context.Context) string {
	name, _ := ctx.Value(commandKey{}).(string)
	return name
}

// contextHandler tags every record with the request id and command found in the context.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if name := Command(ctx); name != "" {
		r.AddAttrs(slog.String("command", name))
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(group string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(group)}
}

// New returns a JSON logger writing to w at the named level. Debug level also records the source position.
func New(w io.Writer, level string) (slog.Level, *slog.Logger) {
	logLevel := ToLevel(level)
	opts := &slog.HandlerOptions{
		AddSource: logLevel == slog.LevelDebug,
		Level:     logLevel,
	}
	return logLevel, slog.New(contextHandler{next: slog.NewJSONHandler(w, opts)})
}

// ToLevel maps a configured level name onto slog. Unknown names log at info.
func ToLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

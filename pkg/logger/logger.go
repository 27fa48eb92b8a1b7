package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New builds the process-wide logger: JSON on stdout for the log shipper,
// tagged with the service name. Local and dev builds drop to debug so
// signaling and webhook traffic is visible while developing.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "phoneb")
}

type ctxKey struct{}

// With stores a logger in context. The HTTP middleware uses it to carry the
// request-tagged logger down into the call and webhook services.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets the logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ShutdownFlush exists for the shutdown path; the JSON handler writes
// unbuffered so there is nothing to flush today.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }

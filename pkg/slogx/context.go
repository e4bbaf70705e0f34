package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

type holderKey struct{}

// loggerHolder lets the request middleware see fields a handler added to
// its logger further down the chain.
type loggerHolder struct {
	logger *slog.Logger
}

func withHolder(ctx context.Context, h *loggerHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// WithContext stores logger on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request scoped logger, or the default logger when
// none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("req_id", reqID))
}

// WithUserID tags every later log line of the request with the caller,
// including the access log line written by HTTPMiddleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	l := FromContext(ctx).With("user_id", userID)
	if h, ok := ctx.Value(holderKey{}).(*loggerHolder); ok {
		h.logger = l
	}
	return WithContext(ctx, l)
}

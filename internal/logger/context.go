package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores l in ctx.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, zap.NewNop())
}

// FromContextOr returns the logger stored in ctx, or fallback.
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return fallback
}

// WithSession derives a tab logger tagged with the session id from the
// logger in ctx (or fallback) and stores it in the returned context.
func WithSession(ctx context.Context, fallback *zap.Logger, id string) (context.Context, *zap.Logger) {
	l := FromContextOr(ctx, fallback).With(zap.String("session_id", id))
	return ContextWithLogger(ctx, l), l
}

package utils

import (
	"context"
	"log/slog"

	"github.com/secmon-lab/gcu/pkg/domain/types"
)

type ctxRequestIDKey struct{}

// CtxRequestID returns the ID of the push request handled with ctx, assigning a new one if ctx has none
func CtxRequestID(ctx context.Context) (types.RequestID, context.Context) {
	if id, ok := ctx.Value(ctxRequestIDKey{}).(types.RequestID); ok {
		return id, ctx
	}

	id := types.NewRequestID()
	return id, context.WithValue(ctx, ctxRequestIDKey{}, id)
}

type ctxLoggerKey struct{}

// CtxWithLogger attaches logger to ctx. Handlers, use cases and the push receiver log through CtxLogger.
func CtxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func CtxLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return Logger()
}

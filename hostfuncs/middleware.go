package hostfuncs

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Handler) Handler

// LoggingMiddleware logs every host function invocation at debug level and
// every failure at error level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env, args []uint32) (int32, error) {
			funcName := "unknown"
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
			}
			start := time.Now()
			status, err := next(ctx, env, args)
			if err != nil {
				logger.ErrorContext(ctx, "host function failed", "function", funcName, "error", err)
				return status, err
			}
			logger.DebugContext(ctx, "host function completed",
				"function", funcName,
				"status", status,
				"duration", time.Since(start))
			return status, nil
		}
	}
}

package http

import (
	"context"
	"log/slog"
)

const serviceName = "iamcore"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records a failed operation at warn, escalating to
// error for 5xx responses.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	httpLogger().Log(ctx, level, "http operation failed", fields...)
}

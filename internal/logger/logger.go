package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bank-reconciliation-engine/internal/config"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the JSON logger of a service. Every record carries the
// service name and environment.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)
	opts := &slog.HandlerOptions{
		Level: level,
		// Add source code location to log output
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts)).With(
		"service", cfg.Application.Name,
		"env", cfg.Application.Env,
	)
	logger.Info("logger initialized", "log_level", level.String())

	return logger
}

type correlationKey struct{}

// ContextWithCorrelationID stores a correlation id for downstream loggers and events
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationIDFromContext returns the stored correlation id or ""
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// FromContext returns logger with the correlation id of ctx attached, when there is one
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return logger.With("correlation_id", id)
	}
	return logger
}

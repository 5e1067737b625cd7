package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID.
func GenerateTraceID() string {
	return uuid.New().String()
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context carrying the logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// PairContext creates a logger for per-instrument operations.
func PairContext(symbol string) *Logger {
	return Default().WithField("symbol", symbol).WithComponent("pair")
}

// SourceContext creates a logger for quote-source operations.
func SourceContext(name, symbol string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"source": name,
		"symbol": symbol,
	}).WithComponent("source")
}

// SignalContext creates a logger for signal lifecycle operations.
func SignalContext(signalID, symbol, patternType string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"signal_id":    signalID,
		"symbol":       symbol,
		"pattern_type": patternType,
	}).WithComponent("signals")
}

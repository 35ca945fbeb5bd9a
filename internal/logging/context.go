package logging

import (
	"context"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	analysisIDKey contextKey = "analysis_id"
	metricIDKey   contextKey = "metric_id"
)

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, falls back to global
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return global
}

// WithAnalysisID adds an analysis run ID to the context
func WithAnalysisID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, analysisIDKey, id)
}

// AnalysisID returns the analysis run ID of the context, if any
func AnalysisID(ctx context.Context) string {
	id, _ := ctx.Value(analysisIDKey).(string)
	return id
}

// WithMetricID adds the metric being processed to the context
func WithMetricID(ctx context.Context, metricID string) context.Context {
	return context.WithValue(ctx, metricIDKey, metricID)
}

// extractContextFields extracts logging fields from context
func extractContextFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if id, ok := ctx.Value(analysisIDKey).(string); ok && id != "" {
		fields = append(fields, "analysis_id", id)
	}
	if id, ok := ctx.Value(metricIDKey).(string); ok && id != "" {
		fields = append(fields, "metric_id", id)
	}
	return fields
}

// DebugCtx logs a debug message with context
func DebugCtx(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).WithContext(ctx).Debug(msg, fields...)
}

// InfoCtx logs an info message with context
func InfoCtx(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).WithContext(ctx).Info(msg, fields...)
}

// WarnCtx logs a warning message with context
func WarnCtx(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).WithContext(ctx).Warn(msg, fields...)
}

// ErrorCtx logs an error message with context
func ErrorCtx(ctx context.Context, msg string, fields ...interface{}) {
	FromContext(ctx).WithContext(ctx).Error(msg, fields...)
}

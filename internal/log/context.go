// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
	sessionIDKey
)

// contextFields maps each context key to the log field it is written as.
var contextFields = []struct {
	key   ctxKey
	field string
}{
	{requestIDKey, FieldRequestID},
	{correlationIDKey, FieldCorrelationID},
	{sessionIDKey, FieldSessionID},
}

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func valueOf(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithCorrelationID stores the correlation ID in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

// ContextWithSessionID stores the QoS session ID in ctx. Loggers derived
// through WithContext carry it as session_id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string     { return valueOf(ctx, requestIDKey) }
func CorrelationIDFromContext(ctx context.Context) string { return valueOf(ctx, correlationIDKey) }
func SessionIDFromContext(ctx context.Context) string     { return valueOf(ctx, sessionIDKey) }

// WithContext returns logger with every ID found in ctx attached. The logger
// is returned unchanged when ctx carries none.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	var builder *zerolog.Context
	for _, f := range contextFields {
		v := valueOf(ctx, f.key)
		if v == "" {
			continue
		}
		if builder == nil {
			b := logger.With()
			builder = &b
		}
		*builder = builder.Str(f.field, v)
	}
	if builder == nil {
		return logger
	}
	return builder.Logger()
}

// WithComponentFromContext is WithContext applied to the component logger.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

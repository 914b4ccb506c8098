package common

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyPeriod    contextKey = "period"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context, minting one when absent.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		return requestID
	}
	return uuid.New().String()
}

// WithPeriod tags the context with the reporting period being processed.
func WithPeriod(ctx context.Context, period int) context.Context {
	return context.WithValue(ctx, ContextKeyPeriod, period)
}

// PeriodFromContext extracts the reporting period, or 0.
func PeriodFromContext(ctx context.Context) int {
	if period, ok := ctx.Value(ContextKeyPeriod).(int); ok {
		return period
	}
	return 0
}

// WithTimeout creates a context with the specified timeout. A non-positive
// timeout returns a cancelable child of parent without a deadline.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

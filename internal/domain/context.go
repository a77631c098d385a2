package domain

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// requestIDContextKey stores the caller's request ID for tracing.
	requestIDContextKey contextKey = iota
)

// NewContextWithRequestID returns a new context with the request ID attached.
// The ID survives context.WithoutCancel, so it follows a checkout into its
// detached steps.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

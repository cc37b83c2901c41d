package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keyRequestID contextKey = "request_id"
	keyUserID    contextKey = "user_id"
	keyUserEmail contextKey = "user_email"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRequestID adds the inbound request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the inbound request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithUserID adds user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts user ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithUserEmail adds user email to context.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyUserEmail, email)
}

// UserEmail extracts user email from context.
func UserEmail(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserEmail).(string)
	return v, ok && v != ""
}

// Identity is the caller identity supplied by the upstream identity provider.
// A zero Identity means the caller is anonymous.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}

// IdentityFromContext returns the caller identity, or false when anonymous.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := UserID(ctx)
	if !ok {
		return Identity{}, false
	}
	email, _ := UserEmail(ctx)
	return Identity{UserID: id, Email: email}, true
}

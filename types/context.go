package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRunID   contextKey = "run_id"
	keyAttempt contextKey = "attempt"
)

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithAttempt adds the 1-based attempt ordinal to context.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, keyAttempt, attempt)
}

// Attempt extracts the attempt ordinal from context.
func Attempt(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(keyAttempt).(int)
	return v, ok && v > 0
}

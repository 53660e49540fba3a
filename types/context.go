package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keySessionID contextKey = "session_id"
	keyRound     contextKey = "round"
	keyMemberID  contextKey = "member_id"
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

// WithSessionID adds the deliberation session ID to context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// SessionID extracts the deliberation session ID from context.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySessionID).(string)
	return v, ok && v != ""
}

// WithRound adds the current deliberation round to context.
func WithRound(ctx context.Context, round string) context.Context {
	return context.WithValue(ctx, keyRound, round)
}

// Round extracts the current deliberation round from context.
func Round(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRound).(string)
	return v, ok && v != ""
}

// WithMemberID adds the invoked council member ID to context.
func WithMemberID(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, keyMemberID, memberID)
}

// MemberID extracts the invoked council member ID from context.
func MemberID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyMemberID).(string)
	return v, ok && v != ""
}

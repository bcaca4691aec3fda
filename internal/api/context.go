package api

import "context"

type contextKey string

const sessionContextKey contextKey = "session_id"

// SessionFromContext extracts the session ID from context
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}

// ContextWithSession adds the session ID to context
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionContextKey, id)
}

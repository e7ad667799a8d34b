package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// OwnerKey returns the key that identifies the component instances of the current browser.
// Requests without a session share the anonymous owner.
func OwnerKey(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil && sess.ID != "" {
		return sess.ID
	}
	return "anonymous"
}

package auth

import "context"

type contextKey struct{}

func WithSession(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*SessionClaims)
	return claims, ok && claims != nil
}

// UserIDFromContext returns the authenticated user id, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if claims, ok := SessionFromContext(ctx); ok {
		return claims.User.ID
	}
	return 0
}

package signup

import (
	"context"

	"github.com/goliatone/go-router"
)

type sessionCtxKey struct{}

// WithSession stores claims in a context.Context
func WithSession(ctx context.Context, claims SessionClaims) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, claims)
}

// SessionFromContext returns the claims stored by WithSession
func SessionFromContext(ctx context.Context) (SessionClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(sessionCtxKey{}).(SessionClaims)
	return claims, ok && claims != nil
}

// SessionFromLocals returns the claims the middleware stored under key
func SessionFromLocals(ctx router.Context, key string) (SessionClaims, bool) {
	if key == "" {
		key = DefaultSessionContextKey
	}
	claims, ok := ctx.Locals(key).(SessionClaims)
	return claims, ok && claims != nil
}

// AppSessionFromContext narrows the stored claims to an activated user.
func AppSessionFromContext(ctx context.Context) (AppClaims, bool) {
	claims, ok := SessionFromContext(ctx)
	if !ok {
		return AppClaims{}, false
	}
	app, ok := claims.(AppClaims)
	return app, ok
}

// PendingSessionFromContext narrows the stored claims to a registrant.
func PendingSessionFromContext(ctx context.Context) (PendingClaims, bool) {
	claims, ok := SessionFromContext(ctx)
	if !ok {
		return PendingClaims{}, false
	}
	pending, ok := claims.(PendingClaims)
	return pending, ok
}

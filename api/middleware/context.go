package middleware

import (
	"context"

	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// PrincipalFromContext returns the authenticated principal, or the zero value
// when the request never passed the auth middleware.
func PrincipalFromContext(ctx context.Context) auth.Principal {
	if ctx == nil {
		return auth.Principal{}
	}
	if v, ok := ctx.Value(ctxPrincipal).(auth.Principal); ok {
		return v
	}
	return auth.Principal{}
}

// WithPrincipal injects the principal into the context.
func WithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}

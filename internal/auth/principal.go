package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

type ctxKey int

const principalKey ctxKey = 0

// Principal is the authenticated identity injected by the auth
// middleware after the user row has been verified live.
type Principal struct {
	UserID       uuid.UUID
	Organization uuid.UUID
	Email        string
	Role         model.Role
}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the request principal. The second result is
// false on unauthenticated requests, which only happens on routes
// outside the auth group.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

package middleware

import (
	"context"

	pkgAuth "github.com/tellowai/admin-api-sub001/pkg/auth"
)

type contextKey string

const (
	ctxOwnerRef contextKey = "owner_ref"
	ctxRole     contextKey = "actor_role"
)

func OwnerRefFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerRef).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// IsAdmin reports whether the authenticated caller holds the admin role.
func IsAdmin(ctx context.Context) bool {
	return RoleFromContext(ctx) == string(pkgAuth.RoleAdmin)
}

// WithOwnerRef injects the owner reference into the context.
func WithOwnerRef(ctx context.Context, ownerRef string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwnerRef, ownerRef)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

package shared

import "context"

// Principal is the authenticated actor as supplied by the identity layer.
// The engine trusts these values and performs no credential verification.
type Principal struct {
	UserID         int64
	OrganizationID int64
	// Super marks the super-privileged capability required to edit or
	// delete system roles.
	Super bool
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

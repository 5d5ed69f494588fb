package auth

import (
	"context"
)

var claimsCtxKey = &contextKey{"claims"}
var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the verified SessionClaims in the given context
func WithClaimsContext(r context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the SessionClaims from the standard context
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}

// WithPrincipalContext sets the resolved principal summary in the context.
func WithPrincipalContext(r context.Context, principal PrincipalSummary) context.Context {
	return context.WithValue(r, principalCtxKey, principal)
}

// GetPrincipal extracts the principal summary from the standard context.
func GetPrincipal(ctx context.Context) (PrincipalSummary, bool) {
	raw, ok := ctx.Value(principalCtxKey).(PrincipalSummary)
	return raw, ok
}

// IsAdminContext reports whether the context carries admin-staff claims.
func IsAdminContext(ctx context.Context) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.Kind == KindStaff && claims.Admin
}

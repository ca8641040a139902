package auth

import (
	"context"
	"time"

	"attendance/internal/apperr"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role == RoleAdmin }

// RequireAuthenticated fails with Unauthorized for anonymous callers.
func (p Principal) RequireAuthenticated() error {
	if !p.Authenticated() {
		return apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	return nil
}

// RequireAdmin fails with Unauthorized for anonymous callers and
// Forbidden for authenticated non-admins.
func (p Principal) RequireAdmin() error {
	if err := p.RequireAuthenticated(); err != nil {
		return err
	}
	if p.Role != RoleAdmin {
		return apperr.New(apperr.ErrForbidden, "Admin access required")
	}
	return nil
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached to ctx, or the zero Principal.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

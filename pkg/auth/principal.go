package auth

import (
	"context"

	"github.com/gurulk/platform/pkg/contextkeys"
)

// Principal is the resolved identity attached to a request after the bearer
// token has been validated. It is constructed once by the authentication
// gate and passed through the handler chain; handlers never re-validate.
type Principal struct {
	UserID            int64    `json:"userId"`
	Username          string   `json:"username"`
	Role              Role     `json:"role"`
	Email             string   `json:"email"`
	PreferredLanguage Language `json:"preferredLanguage,omitempty"`
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Is reports whether the principal refers to the given user id. Used for
// owner checks and the admin self-action restriction.
func (p *Principal) Is(userID int64) bool {
	return p != nil && p.UserID == userID
}

// PrincipalFromContext returns the authenticated principal attached by the
// authentication gate, or (nil, false) for an anonymous request.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return principal, ok && principal != nil
}

package auth

import (
	"context"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
)

// RequireUser allows the call only when an authenticated identity is present.
func RequireUser(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFrom(ctx)
	if !ok {
		return Identity{}, apperror.Unauthorized("authentication required")
	}
	return identity, nil
}

// RequireOwner allows the call only when the authenticated identity is the target user.
func RequireOwner(ctx context.Context, targetID uint) (Identity, error) {
	identity, err := RequireUser(ctx)
	if err != nil {
		return Identity{}, err
	}
	if identity.ID != targetID {
		return Identity{}, apperror.Forbidden("cannot modify another user")
	}
	return identity, nil
}

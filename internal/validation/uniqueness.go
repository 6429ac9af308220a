package validation

import (
	"context"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
	"github.com/isdelr/ender-accounts-be/internal/models"
)

// MsgEmailTaken is reported when an email belongs to another user.
const MsgEmailTaken = "email already registered"

// EmailLookup finds a user by normalized email, returning nil when absent.
type EmailLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// EmailChecker enforces email uniqueness against stored users.
type EmailChecker struct {
	users EmailLookup
}

// NewEmailChecker creates a checker backed by the given lookup.
func NewEmailChecker(users EmailLookup) *EmailChecker {
	return &EmailChecker{users: users}
}

// EnsureAvailable fails with VALIDATION when email is held by a user other
// than excludeID. Pass 0 to exclude nobody.
func (c *EmailChecker) EnsureAvailable(ctx context.Context, email string, excludeID uint) error {
	existing, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		return apperror.Internal("failed to verify email", err)
	}
	if existing != nil && existing.ID != excludeID {
		return EmailTaken()
	}
	return nil
}

// EmailTaken is the duplicate-email failure, shared with the storage backstop.
func EmailTaken() *apperror.Error {
	return apperror.Validation("email", MsgEmailTaken)
}

// Package validation checks the shape of user service inputs.
//
// Shape checks are static and never touch storage. Email uniqueness is a
// separate, repository-backed step (see EmailChecker) run after shape
// validation passes.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/ender-accounts-be/internal/apperror"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// CreateUserInput is the payload of user.create.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// UpdateUserInput is the payload of user.update. Nil fields are left unchanged.
type UpdateUserInput struct {
	ID    uint    `json:"id" validate:"required"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// UserIDInput is the payload of user.getById and user.delete.
type UserIDInput struct {
	ID uint `json:"id" validate:"required"`
}

// ListUsersInput is the payload of user.getAll. Nil fields take defaults.
type ListUsersInput struct {
	Page  *int `json:"page,omitempty" validate:"omitempty,min=1"`
	Limit *int `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeEmail applies the case policy: emails are trimmed and lower-cased,
// so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create normalizes and validates a create payload in place.
func Create(in *CreateUserInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	return translate(validate.Struct(in))
}

// Update normalizes and validates the fields present in an update payload.
func Update(in *UpdateUserInput) error {
	if err := translate(validate.Struct(in)); err != nil {
		return err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
		if err := translate(validate.Var(name, "required,max=100"), "name"); err != nil {
			return err
		}
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		in.Email = &email
		if err := translate(validate.Var(email, "required,email,max=255"), "email"); err != nil {
			return err
		}
	}
	return nil
}

// UserID validates a payload that only carries an id.
func UserID(in UserIDInput) error {
	return translate(validate.Struct(in))
}

// List validates a listing payload and returns the effective page and limit.
func List(in ListUsersInput) (page, limit int, err error) {
	if err := translate(validate.Struct(in)); err != nil {
		return 0, 0, err
	}
	page, limit = DefaultPage, DefaultLimit
	if in.Page != nil {
		page = *in.Page
	}
	if in.Limit != nil {
		limit = *in.Limit
	}
	return page, limit, nil
}

// translate maps the first violated constraint to a field-attributable
// VALIDATION error. field names the value for validate.Var calls.
func translate(err error, field ...string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.Validation("", "invalid input")
	}

	fe := fieldErrs[0]
	name := fe.Field()
	if len(field) > 0 {
		name = field[0]
	}
	return apperror.Validation(name, message(name, fe.Tag(), fe.Param(), fe.Kind() == reflect.String))
}

func message(field, tag, param string, text bool) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "min":
		if field == "password" {
			return fmt.Sprintf("password must be at least %s characters", param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if !text {
			return fmt.Sprintf("%s must be at most %s", field, param)
		}
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/database"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/validation"
	"github.com/rs/zerolog/log"
)

// Fixed messages for masked storage failures.
const (
	msgCreateFailed = "failed to create user"
	msgListFailed   = "failed to list users"
	msgGetFailed    = "failed to get user"
	msgUpdateFailed = "failed to update user"
	msgDeleteFailed = "failed to delete user"
	msgUserNotFound = "user not found"
)

// DefaultTimeout bounds each operation's storage work.
const DefaultTimeout = 5 * time.Second

// UserRepository is the persistence collaborator for user records.
// Finders return nil, nil when no user matches.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, offset, limit int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, in validation.CreateUserInput) (models.User, error)
	GetAllUsers(ctx context.Context, in validation.ListUsersInput) (models.UserPage, error)
	GetUserByID(ctx context.Context, in validation.UserIDInput) (models.User, error)
	UpdateUser(ctx context.Context, in validation.UpdateUserInput) (models.User, error)
	DeleteUser(ctx context.Context, in validation.UserIDInput) (models.DeleteResult, error)
}

// UserService provides business logic for user management.
type UserService struct {
	repo    UserRepository
	emails  *validation.EmailChecker
	hasher  auth.Hasher
	events  EventRecorder
	timeout time.Duration
}

// NewUserService creates a new UserService. A nil recorder disables auditing.
func NewUserService(repo UserRepository, hasher auth.Hasher, events EventRecorder, timeout time.Duration) *UserService {
	if events == nil {
		events = noopRecorder{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UserService{
		repo:    repo,
		emails:  validation.NewEmailChecker(repo),
		hasher:  hasher,
		events:  events,
		timeout: timeout,
	}
}

// CreateUser validates the input, hashes the password and stores a new user.
func (s *UserService) CreateUser(ctx context.Context, in validation.CreateUserInput) (models.User, error) {
	if err := validation.Create(&in); err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.emails.EnsureAvailable(ctx, in.Email, 0); err != nil {
		return models.User{}, s.mask(err, msgCreateFailed)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, internal(err, msgCreateFailed)
	}

	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		// The unique index settles races the lookup above cannot see.
		if errors.Is(err, database.ErrDuplicateEmail) {
			return models.User{}, validation.EmailTaken()
		}
		return models.User{}, internal(err, msgCreateFailed)
	}

	s.record(ctx, models.EventUserCreated, user.ID)
	return user.Sanitized(), nil
}

// GetAllUsers returns one page of users in creation order.
func (s *UserService) GetAllUsers(ctx context.Context, in validation.ListUsersInput) (models.UserPage, error) {
	page, limit, err := validation.List(in)
	if err != nil {
		return models.UserPage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total, err := s.repo.Count(ctx)
	if err != nil {
		return models.UserPage{}, internal(err, msgListFailed)
	}

	size := int64(limit)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	result := models.UserPage{
		Users:       []models.User{},
		TotalPages:  int(pages),
		CurrentPage: page,
	}

	// Compared in page units so huge page numbers cannot overflow the offset.
	if int64(page) > pages {
		return result, nil
	}

	users, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return models.UserPage{}, internal(err, msgListFailed)
	}
	for _, u := range users {
		result.Users = append(result.Users, u.Sanitized())
	}
	return result, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, in validation.UserIDInput) (models.User, error) {
	if err := validation.UserID(in); err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return models.User{}, internal(err, msgGetFailed)
	}
	if user == nil {
		return models.User{}, apperror.NotFound(msgUserNotFound)
	}
	return user.Sanitized(), nil
}

// UpdateUser changes the name and/or email of the caller's own account.
func (s *UserService) UpdateUser(ctx context.Context, in validation.UpdateUserInput) (models.User, error) {
	if err := validation.UserID(validation.UserIDInput{ID: in.ID}); err != nil {
		return models.User{}, err
	}
	if _, err := auth.RequireOwner(ctx, in.ID); err != nil {
		return models.User{}, err
	}
	if err := validation.Update(&in); err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return models.User{}, internal(err, msgUpdateFailed)
	}
	if existing == nil {
		return models.User{}, apperror.NotFound(msgUserNotFound)
	}

	fields := map[string]interface{}{}
	if in.Name != nil && *in.Name != existing.Name {
		fields["name"] = *in.Name
	}
	if in.Email != nil && *in.Email != existing.Email {
		if err := s.emails.EnsureAvailable(ctx, *in.Email, in.ID); err != nil {
			return models.User{}, s.mask(err, msgUpdateFailed)
		}
		fields["email"] = *in.Email
	}
	if len(fields) == 0 {
		return existing.Sanitized(), nil
	}

	if err := s.repo.Update(ctx, in.ID, fields); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return models.User{}, apperror.NotFound(msgUserNotFound)
		case errors.Is(err, database.ErrDuplicateEmail):
			return models.User{}, validation.EmailTaken()
		default:
			return models.User{}, internal(err, msgUpdateFailed)
		}
	}

	updated, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return models.User{}, internal(err, msgUpdateFailed)
	}
	if updated == nil {
		return models.User{}, apperror.NotFound(msgUserNotFound)
	}

	s.record(ctx, models.EventUserUpdated, in.ID)
	return updated.Sanitized(), nil
}

// DeleteUser permanently removes the caller's own account.
func (s *UserService) DeleteUser(ctx context.Context, in validation.UserIDInput) (models.DeleteResult, error) {
	if err := validation.UserID(in); err != nil {
		return models.DeleteResult{}, err
	}
	if _, err := auth.RequireOwner(ctx, in.ID); err != nil {
		return models.DeleteResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, in.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.DeleteResult{}, apperror.NotFound(msgUserNotFound)
		}
		return models.DeleteResult{}, internal(err, msgDeleteFailed)
	}

	s.record(ctx, models.EventUserDeleted, in.ID)
	return models.DeleteResult{ID: in.ID, Deleted: true}, nil
}

func (s *UserService) record(ctx context.Context, eventType string, userID uint) {
	event := models.Event{
		Type:    eventType,
		UserID:  userID,
		Message: fmt.Sprintf("%s %d", eventType, userID),
	}
	if identity, ok := auth.IdentityFrom(ctx); ok {
		actor := identity.ID
		event.ActorID = &actor
	}
	s.events.Record(ctx, event)
}

// mask keeps caller-facing errors and replaces internal ones with the
// operation's fixed message.
func (s *UserService) mask(err error, message string) error {
	if apperror.CodeOf(err) == apperror.CodeInternal {
		return internal(err, message)
	}
	return err
}

// internal logs the storage cause and returns a non-leaking INTERNAL error.
func internal(cause error, message string) error {
	log.Error().Err(cause).Msg(message)
	return apperror.Internal(message, cause)
}

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/ender-accounts-be/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a mutation targets a missing user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the unique email index rejects a write.
	ErrDuplicateEmail = errors.New("email already exists")
)

// publicColumns never includes password_hash.
var publicColumns = []string{"id", "name", "email", "created_at"}

// UserStore persists users through GORM.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByEmail returns the user holding email, or nil when there is none.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

// FindByID returns the user with id, or nil when there is none.
func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select(publicColumns).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Create inserts user, filling in its ID and CreatedAt.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if isDuplicate(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update applies fields to the user with id.
func (s *UserStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if isDuplicate(result.Error) {
		return ErrDuplicateEmail
	}
	if result.Error != nil {
		return fmt.Errorf("update user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete physically removes the user with id.
func (s *UserStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns up to limit users starting at offset, in creation order.
func (s *UserStore) List(ctx context.Context, offset, limit int) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Select(publicColumns).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Count returns the total number of users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// isDuplicate reports unique index violations. Drivers that predate GORM's
// error translation are matched on their message.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

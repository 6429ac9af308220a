package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/database"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordedEvents) Record(_ context.Context, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// setupService builds a UserService over a fresh in-memory SQLite database.
func setupService(t *testing.T) (*UserService, *database.UserStore, *recordedEvents) {
	t.Helper()

	db, err := database.New(database.Options{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	store := database.NewUserStore(db)
	events := &recordedEvents{}
	return NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost), events, time.Second), store, events
}

func as(userID uint) context.Context {
	return auth.WithSession(context.Background(), &auth.Session{User: &auth.Identity{ID: userID}})
}

func anonymous() context.Context {
	return auth.WithSession(context.Background(), &auth.Session{})
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func mustCreate(t *testing.T, svc *UserService, name, email string) models.User {
	t.Helper()
	user, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: name, Email: email, Password: "senhaSegura123"})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return user
}

func wantCode(t *testing.T, err error, code apperror.Code) *apperror.Error {
	t.Helper()
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code != code {
		t.Fatalf("error = %v, want %s", err, code)
	}
	return appErr
}

func TestCreateUser(t *testing.T) {
	svc, store, events := setupService(t)

	user, err := svc.CreateUser(anonymous(), validation.CreateUserInput{
		Name:     "Test",
		Email:    "test@example.com",
		Password: "senhaSegura123",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID == 0 || user.Email != "test@example.com" || user.CreatedAt.IsZero() {
		t.Errorf("CreateUser() = %+v", user)
	}
	if user.PasswordHash != "" {
		t.Errorf("CreateUser() returned the password hash")
	}

	body, _ := json.Marshal(user)
	if strings.Contains(string(body), "password") || strings.Contains(string(body), "senha") {
		t.Errorf("serialized user leaks the password: %s", body)
	}

	stored, err := store.FindByEmail(context.Background(), "test@example.com")
	if err != nil || stored == nil {
		t.Fatalf("FindByEmail() = %v, %v", stored, err)
	}
	if got := events.types(); len(got) != 1 || got[0] != models.EventUserCreated {
		t.Errorf("recorded events = %v", got)
	}
}

func TestCreateUserStoresBcryptHash(t *testing.T) {
	db, err := database.New(database.Options{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	svc := NewUserService(database.NewUserStore(db), auth.NewBcryptHasher(bcrypt.MinCost), nil, time.Second)

	user, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Hash", Email: "hash@example.com", Password: "senhaSegura123"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	var stored models.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("loading stored user: %v", err)
	}
	if stored.PasswordHash == "senhaSegura123" {
		t.Fatalf("password stored in plaintext")
	}
	if err := auth.NewBcryptHasher(bcrypt.MinCost).Compare(stored.PasswordHash, "senhaSegura123"); err != nil {
		t.Errorf("stored hash does not match: %v", err)
	}
}

func TestCreateUserLongPasswords(t *testing.T) {
	svc, _, _ := setupService(t)

	passwords := map[string]string{
		"80 bytes":  strings.Repeat("a", 80),
		"multibyte": strings.Repeat("é", 40),
		"100 runes": strings.Repeat("ç", 100),
	}
	i := 0
	for name, password := range passwords {
		i++
		email := fmt.Sprintf("long%d@example.com", i)
		if _, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Long", Email: email, Password: password}); err != nil {
			t.Errorf("CreateUser(%s) error = %v", name, err)
		}
	}

	_, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Long", Email: "toolong@example.com", Password: strings.Repeat("a", 101)})
	if appErr := wantCode(t, err, apperror.CodeValidation); appErr.Field != "password" {
		t.Errorf("101 character password error = %+v", appErr)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, store, _ := setupService(t)
	mustCreate(t, svc, "Original", "duplicado@teste.com")

	_, err := svc.CreateUser(anonymous(), validation.CreateUserInput{
		Name:     "Copy",
		Email:    "Duplicado@Teste.com",
		Password: "senha456",
	})
	appErr := wantCode(t, err, apperror.CodeValidation)
	if appErr.Message != "email already registered" || appErr.Field != "email" {
		t.Errorf("duplicate error = %+v", appErr)
	}

	n, _ := store.Count(context.Background())
	if n != 1 {
		t.Errorf("Count() = %d, want exactly one record", n)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, store, _ := setupService(t)

	tests := []struct {
		name  string
		in    validation.CreateUserInput
		field string
	}{
		{"short password", validation.CreateUserInput{Name: "Test User", Email: "shortpass@example.com", Password: "123"}, "password"},
		{"bad email", validation.CreateUserInput{Name: "Email", Email: "email-ruim", Password: "senha123"}, "email"},
		{"sql injection", validation.CreateUserInput{Name: "Robert'); DROP TABLE Users;--", Email: "hacker@example.com'; DROP TABLE Users;--", Password: "123456"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(anonymous(), tt.in)
			appErr := wantCode(t, err, apperror.CodeValidation)
			if appErr.Field != tt.field {
				t.Errorf("field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}

	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("invalid input persisted %d users", n)
	}
}

func TestGetAllUsersPagination(t *testing.T) {
	svc, _, _ := setupService(t)
	for i := 1; i <= 25; i++ {
		mustCreate(t, svc, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@test.com", i))
	}
	ctx := anonymous()

	t.Run("default limit", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(1)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if len(page.Users) != 10 || page.TotalPages != 3 || page.CurrentPage != 1 {
			t.Errorf("GetAllUsers(page 1) = %d users, %d pages, current %d", len(page.Users), page.TotalPages, page.CurrentPage)
		}
	})

	t.Run("second page of five", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(2), Limit: intPtr(5)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if page.TotalPages != 5 {
			t.Errorf("TotalPages = %d, want 5", page.TotalPages)
		}
		if page.Users[0].Name != "User 6" {
			t.Errorf("first user = %q, want User 6", page.Users[0].Name)
		}
	})

	t.Run("last short page", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(3), Limit: intPtr(10)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if len(page.Users) != 5 {
			t.Errorf("len(Users) = %d, want 5", len(page.Users))
		}
	})

	t.Run("beyond last page", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(10), Limit: intPtr(10)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if page.Users == nil || len(page.Users) != 0 || page.CurrentPage != 10 {
			t.Errorf("GetAllUsers(beyond) = %+v, want empty page", page)
		}
	})

	t.Run("invalid page", func(t *testing.T) {
		_, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(0)})
		wantCode(t, err, apperror.CodeValidation)
	})

	t.Run("huge page", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Page: intPtr(1<<62 + 1), Limit: intPtr(4)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if len(page.Users) != 0 || page.TotalPages != 7 {
			t.Errorf("GetAllUsers(huge page) = %d users, %d pages", len(page.Users), page.TotalPages)
		}
	})

	t.Run("limit above maximum", func(t *testing.T) {
		_, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Limit: intPtr(math.MaxInt)})
		appErr := wantCode(t, err, apperror.CodeValidation)
		if appErr.Field != "limit" || appErr.Message != "limit must be at most 100" {
			t.Errorf("limit error = %+v", appErr)
		}
	})

	t.Run("maximum limit", func(t *testing.T) {
		page, err := svc.GetAllUsers(ctx, validation.ListUsersInput{Limit: intPtr(validation.MaxLimit)})
		if err != nil {
			t.Fatalf("GetAllUsers() error = %v", err)
		}
		if len(page.Users) != 25 || page.TotalPages != 1 {
			t.Errorf("GetAllUsers(limit 100) = %d users, %d pages", len(page.Users), page.TotalPages)
		}
	})
}

func TestGetAllUsersEmpty(t *testing.T) {
	svc, _, _ := setupService(t)

	page, err := svc.GetAllUsers(anonymous(), validation.ListUsersInput{})
	if err != nil {
		t.Fatalf("GetAllUsers() error = %v", err)
	}
	if page.TotalPages != 0 || len(page.Users) != 0 || page.CurrentPage != 1 {
		t.Errorf("GetAllUsers(empty) = %+v", page)
	}
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := setupService(t)
	created := mustCreate(t, svc, "Usuário Banco", "banco@teste.com")

	got, err := svc.GetUserByID(as(created.ID), validation.UserIDInput{ID: created.ID})
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.ID != created.ID || got.Name != "Usuário Banco" || got.PasswordHash != "" {
		t.Errorf("GetUserByID() = %+v", got)
	}

	_, err = svc.GetUserByID(anonymous(), validation.UserIDInput{ID: 9999})
	appErr := wantCode(t, err, apperror.CodeNotFound)
	if !strings.Contains(appErr.Message, "not found") {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestUpdateUser(t *testing.T) {
	svc, store, events := setupService(t)
	target := mustCreate(t, svc, "Original Name", "update@test.com")
	other := mustCreate(t, svc, "Other", "other@test.com")

	t.Run("owner renames", func(t *testing.T) {
		updated, err := svc.UpdateUser(as(target.ID), validation.UpdateUserInput{ID: target.ID, Name: strPtr("Novo Nome")})
		if err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}
		if updated.Name != "Novo Nome" || updated.Email != "update@test.com" {
			t.Errorf("UpdateUser() = %+v", updated)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := svc.UpdateUser(anonymous(), validation.UpdateUserInput{ID: target.ID, Name: strPtr("Test")})
		wantCode(t, err, apperror.CodeUnauthorized)
	})

	t.Run("non owner", func(t *testing.T) {
		_, err := svc.UpdateUser(as(9999), validation.UpdateUserInput{ID: target.ID, Name: strPtr("Tentativa Inválida")})
		wantCode(t, err, apperror.CodeForbidden)

		unchanged, _ := store.FindByID(context.Background(), target.ID)
		if unchanged.Name != "Novo Nome" {
			t.Errorf("forbidden update changed the record: %+v", unchanged)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.UpdateUser(as(target.ID), validation.UpdateUserInput{ID: target.ID, Email: strPtr("email-invalido")})
		appErr := wantCode(t, err, apperror.CodeValidation)
		if !strings.Contains(appErr.Message, "email") {
			t.Errorf("message = %q", appErr.Message)
		}
	})

	t.Run("email taken", func(t *testing.T) {
		_, err := svc.UpdateUser(as(target.ID), validation.UpdateUserInput{ID: target.ID, Email: strPtr(other.Email)})
		appErr := wantCode(t, err, apperror.CodeValidation)
		if appErr.Message != "email already registered" {
			t.Errorf("message = %q", appErr.Message)
		}
	})

	t.Run("email changed", func(t *testing.T) {
		updated, err := svc.UpdateUser(as(target.ID), validation.UpdateUserInput{ID: target.ID, Email: strPtr("NEW@test.com")})
		if err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}
		if updated.Email != "new@test.com" {
			t.Errorf("Email = %q", updated.Email)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := svc.UpdateUser(as(9999), validation.UpdateUserInput{ID: 9999, Name: strPtr("Ghost")})
		wantCode(t, err, apperror.CodeNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := svc.UpdateUser(as(target.ID), validation.UpdateUserInput{Name: strPtr("No Id")})
		appErr := wantCode(t, err, apperror.CodeValidation)
		if appErr.Field != "id" || appErr.Message != "id is required" {
			t.Errorf("missing id error = %+v", appErr)
		}
	})

	got := events.types()
	if len(got) != 4 || got[2] != models.EventUserUpdated || got[3] != models.EventUserUpdated {
		t.Errorf("recorded events = %v", got)
	}
}

func TestDeleteUser(t *testing.T) {
	svc, store, _ := setupService(t)
	target := mustCreate(t, svc, "Delete User", "delete@test.com")

	_, err := svc.DeleteUser(anonymous(), validation.UserIDInput{ID: target.ID})
	wantCode(t, err, apperror.CodeUnauthorized)

	_, err = svc.DeleteUser(as(9999), validation.UserIDInput{ID: target.ID})
	wantCode(t, err, apperror.CodeForbidden)
	if still, _ := store.FindByID(context.Background(), target.ID); still == nil {
		t.Fatalf("forbidden delete removed the record")
	}

	_, err = svc.DeleteUser(as(9999), validation.UserIDInput{ID: 9999})
	wantCode(t, err, apperror.CodeNotFound)

	_, err = svc.DeleteUser(as(target.ID), validation.UserIDInput{})
	if appErr := wantCode(t, err, apperror.CodeValidation); appErr.Field != "id" {
		t.Errorf("missing id error = %+v", appErr)
	}

	ack, err := svc.DeleteUser(as(target.ID), validation.UserIDInput{ID: target.ID})
	if err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if !ack.Deleted || ack.ID != target.ID {
		t.Errorf("DeleteUser() = %+v", ack)
	}
	if gone, _ := store.FindByID(context.Background(), target.ID); gone != nil {
		t.Errorf("DeleteUser() left %+v", gone)
	}
}

// failingRepo fails every call with a storage-flavoured error.
type failingRepo struct {
	err error
}

func (f failingRepo) FindByEmail(context.Context, string) (*models.User, error) { return nil, nil }
func (f failingRepo) FindByID(context.Context, uint) (*models.User, error) {
	return nil, f.err
}
func (f failingRepo) Create(context.Context, *models.User) error { return f.err }
func (f failingRepo) Update(context.Context, uint, map[string]interface{}) error {
	return f.err
}
func (f failingRepo) Delete(context.Context, uint) error { return f.err }
func (f failingRepo) List(context.Context, int, int) ([]models.User, error) {
	return nil, f.err
}
func (f failingRepo) Count(context.Context) (int64, error) { return 0, f.err }

func TestStorageFailuresAreMasked(t *testing.T) {
	cause := errors.New("Falha catastrófica no banco: relation \"users\" does not exist")
	svc := NewUserService(failingRepo{err: cause}, auth.NewBcryptHasher(bcrypt.MinCost), nil, time.Second)

	checks := []struct {
		name    string
		call    func() error
		message string
	}{
		{"create", func() error {
			_, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Erro", Email: "erro@teste.com", Password: "senha123"})
			return err
		}, msgCreateFailed},
		{"getAll", func() error {
			_, err := svc.GetAllUsers(anonymous(), validation.ListUsersInput{})
			return err
		}, msgListFailed},
		{"getById", func() error {
			_, err := svc.GetUserByID(anonymous(), validation.UserIDInput{ID: 1})
			return err
		}, msgGetFailed},
		{"update", func() error {
			_, err := svc.UpdateUser(as(1), validation.UpdateUserInput{ID: 1, Name: strPtr("x")})
			return err
		}, msgUpdateFailed},
		{"delete", func() error {
			_, err := svc.DeleteUser(as(1), validation.UserIDInput{ID: 1})
			return err
		}, msgDeleteFailed},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			err := c.call()
			appErr := wantCode(t, err, apperror.CodeInternal)
			if appErr.Message != c.message {
				t.Errorf("message = %q, want %q", appErr.Message, c.message)
			}
			if strings.Contains(err.Error(), "catastrófica") || strings.Contains(err.Error(), "relation") {
				t.Errorf("error leaks storage text: %q", err.Error())
			}
		})
	}
}

func TestCreateUserDuplicateBackstop(t *testing.T) {
	// The lookup sees nothing but the insert hits the unique index.
	svc := NewUserService(failingRepo{err: database.ErrDuplicateEmail}, auth.NewBcryptHasher(bcrypt.MinCost), nil, time.Second)

	_, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Race", Email: "race@example.com", Password: "senha123"})
	appErr := wantCode(t, err, apperror.CodeValidation)
	if appErr.Message != "email already registered" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestConcurrentDuplicateCreates(t *testing.T) {
	svc, store, _ := setupService(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateUser(anonymous(), validation.CreateUserInput{Name: "Racer", Email: "race@example.com", Password: "senha123"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		wantCode(t, err, apperror.CodeValidation)
	}
	if succeeded != 1 {
		t.Errorf("%d creates succeeded, want exactly 1", succeeded)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

// stallingRepo blocks until the context is done.
type stallingRepo struct {
	failingRepo
}

func (stallingRepo) Count(ctx context.Context) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestStorageTimeoutSurfacesAsInternal(t *testing.T) {
	svc := NewUserService(stallingRepo{}, auth.NewBcryptHasher(bcrypt.MinCost), nil, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetAllUsers(anonymous(), validation.ListUsersInput{})
		done <- err
	}()

	select {
	case err := <-done:
		wantCode(t, err, apperror.CodeInternal)
	case <-time.After(2 * time.Second):
		t.Fatalf("GetAllUsers() hung on a stalled repository")
	}
}

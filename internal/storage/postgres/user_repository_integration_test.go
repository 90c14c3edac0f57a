package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestUserRepository_PostgresCreateGetAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewUserRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	user := domain.User{
		ID:           "user-1",
		Name:         "Пётр Иванов",
		Email:        "petr@example.com",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Phone:        "+7 900 000-00-00",
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := repo.Get(user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != user.Email || got.Role != domain.RoleCustomer {
		t.Fatalf("unexpected user payload: %+v", got)
	}

	byEmail, err := repo.GetByEmail(user.Email)
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("unexpected user by email: %+v", byEmail)
	}

	got.Name = "Пётр Сидоров"
	got.Role = domain.RoleAdmin
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save user: %v", err)
	}

	updated, err := repo.Get(user.ID)
	if err != nil {
		t.Fatalf("get updated user: %v", err)
	}
	if updated.Name != "Пётр Сидоров" || updated.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user after save: %+v", updated)
	}
}

func TestUserRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewUserRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	user := domain.User{
		ID:           "user-dup",
		Name:         "Анна",
		Email:        "anna@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := repo.Get("missing-user"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail("missing@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound by email, got %v", err)
	}
	if err := repo.Save(user); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on save missing, got %v", err)
	}

	if err := repo.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := user
	dup.ID = "user-dup-2"
	if err := repo.Create(dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on duplicate email, got %v", err)
	}
}

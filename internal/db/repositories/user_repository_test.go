package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/djstein/orgs/internal/db/models"
)

var userCols = []string{"id", "username", "email", "name", "superuser", "created_at", "updated_at"}

func TestUserRepository_LookupUser(t *testing.T) {
	t.Run("returns the user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)
		now := time.Now()

		mock.ExpectQuery("SELECT.*FROM users.*WHERE username").
			WithArgs("frodo").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-1", "frodo", "frodo@shire.example", "Frodo Baggins", false, now, now))

		user, err := repo.LookupUser(context.Background(), "frodo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user == nil || user.ID != "user-1" {
			t.Errorf("expected user-1, got %+v", user)
		}
	})

	t.Run("absence is nil, not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery("SELECT.*FROM users.*WHERE username").
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		user, err := repo.LookupUser(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Errorf("expected nil, got %+v", user)
		}
	})
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("frodo", "frodo@shire.example", "Frodo Baggins", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("user-1", now, now))

	user := &models.User{Username: "frodo", Email: "frodo@shire.example", Name: "Frodo Baggins"}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected generated ID to be scanned back, got %q", user.ID)
	}
}

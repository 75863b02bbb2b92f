package orgs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/djstein/orgs/internal/db/models"
	"github.com/djstein/orgs/internal/db/repositories"
)

var (
	orgCols    = []string{"id", "name", "slug", "is_active", "publicly_visible", "created_by", "created_at", "updated_at"}
	memberCols = []string{"id", "user_id", "organization_id", "role", "publicly_visible", "created_at", "updated_at"}
	userCols   = []string{"id", "username", "email", "name", "superuser", "created_at", "updated_at"}
)

// newMockStore returns an OrganizationStore backed by a sqlmock database.
func newMockStore(t *testing.T) (*OrganizationStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	store := NewOrganizationStore(db, repositories.NewOrganizationRepository(db), repositories.NewUserRepository(db))
	return store, mock
}

func orgRow(id, name, slug string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orgCols).
		AddRow(id, name, slug, true, true, "user-1", now, now)
}

func memberWithUserRow(id, userID, orgID string, role models.Role, username string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(append(memberCols, "username")).
		AddRow(id, userID, orgID, role, true, now, now, username)
}

func TestOrganizationStore_Create(t *testing.T) {
	actor := Actor{UserID: "user-1", Username: "frodo"}

	t.Run("anonymous actor is rejected", func(t *testing.T) {
		store, _ := newMockStore(t)

		_, err := store.Create(context.Background(), Anonymous(), CreateOrganizationParams{Name: "The Shire"})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		store, _ := newMockStore(t)

		_, err := store.Create(context.Background(), actor, CreateOrganizationParams{Name: ""})
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
			WithArgs("The Shire").
			WillReturnRows(orgRow("org-9", "The Shire", "the-shire"))

		_, err := store.Create(context.Background(), actor, CreateOrganizationParams{Name: "The Shire"})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("creates organization and owner membership atomically", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
			WithArgs("The Shire").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
			WithArgs("the-shire").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO organizations").
			WithArgs("The Shire", "the-shire", true, true, "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("org-1", now, now))
		mock.ExpectQuery("INSERT INTO members").
			WithArgs("user-1", "org-1", models.RoleOwner, false).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("member-1", now, now))
		mock.ExpectCommit()

		org, err := store.Create(context.Background(), actor, CreateOrganizationParams{
			Name:            "The Shire",
			PubliclyVisible: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if org.ID != "org-1" {
			t.Errorf("expected org ID to be filled in, got %q", org.ID)
		}
		if org.Slug != "the-shire" {
			t.Errorf("expected derived slug %q, got %q", "the-shire", org.Slug)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("insert failure rolls back the owner membership", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO organizations").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("org-1", now, now))
		mock.ExpectQuery("INSERT INTO members").
			WillReturnError(errors.New("insert failed"))
		mock.ExpectRollback()

		_, err := store.Create(context.Background(), actor, CreateOrganizationParams{Name: "The Shire"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestOrganizationStore_Update(t *testing.T) {
	org := &models.Organization{ID: "org-1", Name: "The Shire", Slug: "the-shire", IsActive: true}

	t.Run("non-owner member is denied", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT EXISTS.*FROM members").
			WithArgs("org-1", "user-2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		name := "Renamed"
		_, err := store.Update(context.Background(), Actor{UserID: "user-2"}, org, UpdateOrganizationParams{Name: &name})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("rename recomputes the slug", func(t *testing.T) {
		store, mock := newMockStore(t)
		copy := *org

		mock.ExpectQuery("SELECT EXISTS.*FROM members").
			WithArgs("org-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
			WithArgs("Grand Shire").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE slug").
			WithArgs("grand-shire").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("UPDATE organizations").
			WithArgs("org-1", "Grand Shire", "grand-shire", false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		name := "Grand Shire"
		updated, err := store.Update(context.Background(), Actor{UserID: "user-1"}, &copy, UpdateOrganizationParams{Name: &name})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Slug != "grand-shire" {
			t.Errorf("expected slug %q, got %q", "grand-shire", updated.Slug)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("rename collision conflicts", func(t *testing.T) {
		store, mock := newMockStore(t)
		copy := *org

		mock.ExpectQuery("SELECT EXISTS.*FROM members").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
			WithArgs("Mordor").
			WillReturnRows(orgRow("org-2", "Mordor", "mordor"))

		name := "Mordor"
		_, err := store.Update(context.Background(), Actor{UserID: "user-1"}, &copy, UpdateOrganizationParams{Name: &name})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestOrganizationStore_AddMember(t *testing.T) {
	org := &models.Organization{ID: "org-1", Slug: "the-shire"}

	t.Run("invalid role is rejected", func(t *testing.T) {
		store, _ := newMockStore(t)

		_, err := store.AddMember(context.Background(), org, "sam", models.Role("ADMIN"))
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("unknown username is not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT.*FROM users.*WHERE username").
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		_, err := store.AddMember(context.Background(), org, "nobody", models.RoleMember)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("existing membership conflicts", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT.*FROM users.*WHERE username").
			WithArgs("sam").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow("user-2", "sam", "sam@shire.example", "Sam", false, now, now))
		mock.ExpectQuery("SELECT.*FROM members.*WHERE organization_id").
			WithArgs("org-1", "user-2").
			WillReturnRows(sqlmock.NewRows(memberCols).AddRow("member-2", "user-2", "org-1", models.RoleMember, false, now, now))

		_, err := store.AddMember(context.Background(), org, "sam", models.RoleMember)
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("adds member in a transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT.*FROM users.*WHERE username").
			WithArgs("sam").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow("user-2", "sam", "sam@shire.example", "Sam", false, now, now))
		mock.ExpectQuery("SELECT.*FROM members.*WHERE organization_id").
			WithArgs("org-1", "user-2").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO members").
			WithArgs("user-2", "org-1", models.RoleMember, false).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("member-2", now, now))
		mock.ExpectCommit()

		member, err := store.AddMember(context.Background(), org, "sam", models.RoleMember)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if member.ID != "member-2" {
			t.Errorf("expected member ID to be filled in, got %q", member.ID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestOrganizationStore_RemoveMember(t *testing.T) {
	org := &models.Organization{ID: "org-1", Slug: "the-shire"}

	t.Run("missing organization is not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := store.RemoveMember(context.Background(), org, "frodo")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("non-member is not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "nobody").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := store.RemoveMember(context.Background(), org, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sole owner is protected", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "frodo").
			WillReturnRows(memberWithUserRow("member-1", "user-1", "org-1", models.RoleOwner, "frodo"))
		mock.ExpectQuery("SELECT COUNT.*FROM members").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := store.RemoveMember(context.Background(), org, "frodo")
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("removes an owner when another owner remains", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "frodo").
			WillReturnRows(memberWithUserRow("member-1", "user-1", "org-1", models.RoleOwner, "frodo"))
		mock.ExpectQuery("SELECT COUNT.*FROM members").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("DELETE FROM team_members").
			WithArgs("member-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM members").
			WithArgs("member-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := store.RemoveMember(context.Background(), org, "frodo"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("plain member is removed without an owner count", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "sam").
			WillReturnRows(memberWithUserRow("member-2", "user-2", "org-1", models.RoleMember, "sam"))
		mock.ExpectExec("DELETE FROM team_members").
			WithArgs("member-2").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM members").
			WithArgs("member-2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := store.RemoveMember(context.Background(), org, "sam"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestOrganizationStore_UpdateMemberRole(t *testing.T) {
	org := &models.Organization{ID: "org-1", Slug: "the-shire"}

	t.Run("invalid role is rejected", func(t *testing.T) {
		store, _ := newMockStore(t)

		_, err := store.UpdateMemberRole(context.Background(), org, "frodo", models.Role("WIZARD"))
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("demoting the sole owner is refused", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "frodo").
			WillReturnRows(memberWithUserRow("member-1", "user-1", "org-1", models.RoleOwner, "frodo"))
		mock.ExpectQuery("SELECT COUNT.*FROM members").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		_, err := store.UpdateMemberRole(context.Background(), org, "frodo", models.RoleMember)
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("promoting a member skips the owner count", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "sam").
			WillReturnRows(memberWithUserRow("member-2", "user-2", "org-1", models.RoleMember, "sam"))
		mock.ExpectExec("UPDATE members").
			WithArgs("member-2", models.RoleOwner).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		member, err := store.UpdateMemberRole(context.Background(), org, "sam", models.RoleOwner)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if member.Role != models.RoleOwner {
			t.Errorf("expected role %q, got %q", models.RoleOwner, member.Role)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("demoting one of two owners succeeds", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM organizations.*FOR UPDATE").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))
		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "frodo").
			WillReturnRows(memberWithUserRow("member-1", "user-1", "org-1", models.RoleOwner, "frodo"))
		mock.ExpectQuery("SELECT COUNT.*FROM members").
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("UPDATE members").
			WithArgs("member-1", models.RoleMember).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		member, err := store.UpdateMemberRole(context.Background(), org, "frodo", models.RoleMember)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if member.Role != models.RoleMember {
			t.Errorf("expected role %q, got %q", models.RoleMember, member.Role)
		}
	})
}

func TestOrganizationStore_UpdateMemberVisibility(t *testing.T) {
	org := &models.Organization{ID: "org-1", Slug: "the-shire"}

	t.Run("non-member is not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "nobody").
			WillReturnError(sql.ErrNoRows)

		_, err := store.UpdateMemberVisibility(context.Background(), org, "nobody", true)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("flips the visibility flag", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT.*FROM members.*INNER JOIN users").
			WithArgs("org-1", "sam").
			WillReturnRows(memberWithUserRow("member-2", "user-2", "org-1", models.RoleMember, "sam"))
		mock.ExpectExec("UPDATE members").
			WithArgs("member-2", false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		member, err := store.UpdateMemberVisibility(context.Background(), org, "sam", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if member.PubliclyVisible {
			t.Error("expected member to be hidden")
		}
	})
}

func TestOrganizationStore_Delete(t *testing.T) {
	org := &models.Organization{ID: "org-1", Slug: "the-shire"}

	t.Run("cascades teams and memberships in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT EXISTS.*FROM members").
			WithArgs("org-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM team_members").WithArgs("org-1").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("DELETE FROM members").WithArgs("org-1").WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec("DELETE FROM teams").WithArgs("org-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM organizations").WithArgs("org-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := store.Delete(context.Background(), Actor{UserID: "user-1"}, org); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("elevated actor bypasses the owner check", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM team_members").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM members").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM teams").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM organizations").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := store.Delete(context.Background(), Actor{UserID: "admin", Elevated: true}, org); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

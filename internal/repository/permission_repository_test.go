package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/clinicore/access-control/internal/model"
)

func newPermRepoMock(t *testing.T) (*PermissionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPermissionRepo(db), mock
}

func TestPermissionList(t *testing.T) {
	repo, mock := newPermRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM permissions ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(1, "patients:read", "read patients records", now).
			AddRow(2, "patients:create", "create patients records", now))

	perms, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(perms) != 2 || perms[0].Name != "patients:read" {
		t.Errorf("perms = %+v", perms)
	}
}

func TestPermissionGetByIDs(t *testing.T) {
	repo, mock := newPermRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id,name,description,created_at FROM permissions WHERE id IN (?,?,?)")).
		WithArgs(uint64(1), uint64(2), uint64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(1, "patients:read", "", now).
			AddRow(2, "patients:create", "", now))

	// id 999 does not exist; it is simply absent from the result.
	perms, err := repo.GetByIDs(context.Background(), []uint64{1, 2, 999})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(perms) != 2 {
		t.Errorf("got %d permissions, want 2", len(perms))
	}
}

func TestPermissionGetByIDsEmpty(t *testing.T) {
	repo, _ := newPermRepoMock(t)

	// No ids means no query at all.
	perms, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if perms != nil {
		t.Errorf("perms = %+v, want nil", perms)
	}
}

func TestPermissionEnsure(t *testing.T) {
	repo, mock := newPermRepoMock(t)

	entries := []model.Permission{
		{Name: "patients:read", Description: "read patients records"},
		{Name: "patients:create", Description: "create patients records"},
	}
	for _, e := range entries {
		mock.ExpectExec(regexp.QuoteMeta(
			"INSERT IGNORE INTO permissions (name, description) VALUES (?,?)")).
			WithArgs(e.Name, e.Description).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := repo.Ensure(context.Background(), entries); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

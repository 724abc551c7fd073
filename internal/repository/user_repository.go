package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/clinicore/access-control/internal/model"
)

// UserRepo owns the `users` table. Uniqueness of (tenant_id, email) is
// enforced by the database, not by a read-then-write check, so two
// concurrent registrations for the same pair resolve to exactly one
// winner.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,tenant_id,email,password_hash,role,first_name,last_name,is_active,created_at,updated_at"

// Create inserts a user and returns its ID. The caller supplies an
// already-hashed password; plaintext never reaches this layer.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (tenant_id, email, password_hash, role, first_name, last_name) VALUES (?,?,?,?,?,?)",
		u.TenantID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Role, u.FirstName, u.LastName)
	if err != nil {
		// MySQL 1062 = duplicate entry on the unique key
		if strings.Contains(err.Error(), "1062") {
			return 0, ErrEmailExists
		}
		// MySQL 1452 = foreign key failure: the role was deleted
		// between the caller's existence check and this insert.
		if strings.Contains(err.Error(), "1452") {
			return 0, ErrUnknownRole
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email within a tenant.
func (r *UserRepo) GetByEmail(ctx context.Context, tenantID, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id=? AND email=? LIMIT 1",
		tenantID, email).
		Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id).
		Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// Update applies a partial update; only non-nil fields change. A role
// change is a single-column swap inside one UPDATE, so readers never
// observe a partial permission state. The new role must exist in the
// registry; unknown names are rejected with ErrUnknownRole before
// anything is written.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd model.UserUpdate) (model.User, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Role != nil {
		var n int64
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM roles WHERE name=?", *upd.Role).Scan(&n); err != nil {
			return model.User{}, err
		}
		if n == 0 {
			return model.User{}, ErrUnknownRole
		}
		sets = append(sets, "role=?")
		args = append(args, *upd.Role)
	}
	if upd.FirstName != nil {
		sets = append(sets, "first_name=?")
		args = append(args, *upd.FirstName)
	}
	if upd.LastName != nil {
		sets = append(sets, "last_name=?")
		args = append(args, *upd.LastName)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *upd.IsActive)
	}
	if len(sets) > 0 {
		args = append(args, id)
		_, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
		if err != nil {
			if strings.Contains(err.Error(), "1062") {
				return model.User{}, ErrEmailExists
			}
			if strings.Contains(err.Error(), "1452") {
				return model.User{}, ErrUnknownRole
			}
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// CountByRole returns how many users currently hold the given role.
// The registry consults this before allowing a role deletion.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role=?", role).Scan(&n)
	return n, err
}

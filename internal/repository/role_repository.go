package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/clinicore/access-control/internal/model"
)

// RoleRepo owns the `roles` table and the role_permissions edges. It is
// the single source of truth for role->permission resolution: there is
// no cache in front of PermissionsForRole, so an assignment committed
// by one request is visible to the very next authorization check.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns all roles ordered by id.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,description,created_at FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var ro model.Role
		if err := rows.Scan(&ro.ID, &ro.Name, &ro.Description, &ro.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

// GetByID fetches a role by id.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	var ro model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,description,created_at FROM roles WHERE id=? LIMIT 1", id).
		Scan(&ro.ID, &ro.Name, &ro.Description, &ro.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Role{}, ErrNotFound
	}
	return ro, err
}

// GetByName fetches a role by its unique name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	var ro model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,description,created_at FROM roles WHERE name=? LIMIT 1", name).
		Scan(&ro.ID, &ro.Name, &ro.Description, &ro.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Role{}, ErrNotFound
	}
	return ro, err
}

// Create inserts a role and returns it.
func (r *RoleRepo) Create(ctx context.Context, name, description string) (model.Role, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO roles (name, description) VALUES (?,?)", name, description)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return model.Role{}, ErrRoleExists
		}
		return model.Role{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Role{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Delete removes a role. Policy: deletion is rejected with ErrRoleInUse
// while any user still holds the role; users are never silently
// reassigned. The count check gives the friendly error; the users.role
// foreign key is the backstop, so a registration that commits after the
// count but before this delete surfaces as ErrRoleInUse too.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx,
		"SELECT name FROM roles WHERE id=? FOR UPDATE", id).Scan(&name)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var n int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role=?", name).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id); err != nil {
		// MySQL 1451 = row still referenced by users.role
		if strings.Contains(err.Error(), "1451") {
			return ErrRoleInUse
		}
		return err
	}
	return tx.Commit()
}

// AssignPermissions attaches permission ids to a role. ADD unions the
// ids into the existing set (INSERT IGNORE makes re-adding idempotent);
// REPLACE clears the set and writes exactly the given ids. Both run in
// a single transaction so no reader observes a half-applied set.
func (r *RoleRepo) AssignPermissions(ctx context.Context, roleID uint64, permissionIDs []uint64, mode model.AssignMode) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists uint64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM roles WHERE id=? FOR UPDATE", roleID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if mode == model.AssignReplace {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM role_permissions WHERE role_id=?", roleID); err != nil {
			return err
		}
	}
	for _, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO role_permissions (role_id, permission_id) VALUES (?,?)",
			roleID, pid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PermissionsForRole returns the role's current permission set.
func (r *RoleRepo) PermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.created_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PermissionSetForRoleName resolves a role by name and returns its
// permission names as a set. This is the guard's read path.
func (r *RoleRepo) PermissionSetForRoleName(ctx context.Context, roleName string) (map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.name
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN roles ro ON ro.id = rp.role_id
		 WHERE ro.name = ?`, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	return set, rows.Err()
}

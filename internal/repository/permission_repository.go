package repository

import (
	"context"
	"database/sql"

	"github.com/clinicore/access-control/internal/model"
)

// PermissionRepo owns the `permissions` table. Permissions have no
// update or delete surface: once a name exists it keeps its meaning
// forever, which is what makes old role assignments auditable.
type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

// List returns all permissions ordered by id.
func (r *PermissionRepo) List(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,description,created_at FROM permissions ORDER BY id")
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

// GetByIDs fetches the permissions matching the given ids. Missing ids
// are simply absent from the result; the caller decides whether that
// is an error.
func (r *PermissionRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT id,name,description,created_at FROM permissions WHERE id IN (?"
	args := []any{ids[0]}
	for _, id := range ids[1:] {
		query += ",?"
		args = append(args, id)
	}
	query += ")"
	rows, err := r.DB.QueryContext(ctx, query, args...)
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

// Ensure inserts any catalog entries that do not exist yet. INSERT
// IGNORE keeps the call idempotent across restarts.
func (r *PermissionRepo) Ensure(ctx context.Context, entries []model.Permission) error {
	for _, e := range entries {
		if _, err := r.DB.ExecContext(ctx,
			"INSERT IGNORE INTO permissions (name, description) VALUES (?,?)",
			e.Name, e.Description); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	"github.com/clinicore/access-control/internal/authz"
	"github.com/clinicore/access-control/internal/model"
)

// SeedBuiltins makes sure the built-in roles, the permission catalog
// and the default grants exist. Every step is idempotent, so startup
// runs it unconditionally. Existing extra grants are never removed
// since admins may have widened a role via the RBAC API.
func SeedBuiltins(ctx context.Context, roles *RoleRepo, perms *PermissionRepo) error {
	catalog := authz.Catalog()
	entries := make([]model.Permission, 0, len(catalog))
	for _, e := range catalog {
		entries = append(entries, model.Permission{Name: e.Name, Description: e.Description})
	}
	if err := perms.Ensure(ctx, entries); err != nil {
		return err
	}

	for _, br := range authz.BuiltinRoles {
		if _, err := roles.Create(ctx, br.Name, br.Description); err != nil && !errors.Is(err, ErrRoleExists) {
			return err
		}
	}

	byName := make(map[string]uint64)
	all, err := perms.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range all {
		byName[p.Name] = p.ID
	}

	for roleName, grantNames := range authz.DefaultGrants() {
		role, err := roles.GetByName(ctx, roleName)
		if err != nil {
			return err
		}
		ids := make([]uint64, 0, len(grantNames))
		for _, name := range grantNames {
			if id, ok := byName[name]; ok {
				ids = append(ids, id)
			}
		}
		if err := roles.AssignPermissions(ctx, role.ID, ids, model.AssignAdd); err != nil {
			return err
		}
	}
	return nil
}

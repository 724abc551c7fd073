package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/access-control/internal/model"
	"github.com/clinicore/access-control/internal/repository"
)

// RoleRegistry is the role/permission registry as the RBAC handlers
// see it. *repository.RoleRepo satisfies it.
type RoleRegistry interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByID(ctx context.Context, id uint64) (model.Role, error)
	Create(ctx context.Context, name, description string) (model.Role, error)
	Delete(ctx context.Context, id uint64) error
	AssignPermissions(ctx context.Context, roleID uint64, permissionIDs []uint64, mode model.AssignMode) error
	PermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error)
}

// PermissionCatalog lists and resolves permissions. *repository.
// PermissionRepo satisfies it.
type PermissionCatalog interface {
	List(ctx context.Context) ([]model.Permission, error)
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Permission, error)
}

// RBACHandler serves the role and permission administration endpoints.
type RBACHandler struct {
	Roles RoleRegistry
	Perms PermissionCatalog
}

func NewRBACHandler(roles RoleRegistry, perms PermissionCatalog) *RBACHandler {
	return &RBACHandler{Roles: roles, Perms: perms}
}

// ----- DTOs -----

type createRoleReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
type assignReq struct {
	PermissionIDs []uint64 `json:"permissionIds"`
	Mode          string   `json:"mode"` // REPLACE | ADD (default ADD)
}

type roleResp struct {
	ID          uint64             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions []model.Permission `json:"permissions,omitempty"`
}

func toRoleResp(r model.Role, perms []model.Permission) roleResp {
	return roleResp{ID: r.ID, Name: r.Name, Description: r.Description, Permissions: perms}
}

// ListRoles returns every role ordered by id.
func (h *RBACHandler) ListRoles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]roleResp, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResp(r, nil))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateRole adds a custom role.
func (h *RBACHandler) CreateRole(c echo.Context) error {
	var req createRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	role, err := h.Roles.Create(ctx, name, strings.TrimSpace(req.Description))
	if err != nil {
		if errors.Is(err, repository.ErrRoleExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "role already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create role failed"})
	}
	return c.JSON(http.StatusCreated, toRoleResp(role, nil))
}

// DeleteRole removes a role. Deletion is rejected while users still
// hold the role; callers must reassign those users first.
func (h *RBACHandler) DeleteRole(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Roles.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		case errors.Is(err, repository.ErrRoleInUse):
			return c.JSON(http.StatusConflict, echo.Map{"error": "role is in use"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete role failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPermissions returns the permission catalog.
func (h *RBACHandler) ListPermissions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	perms, err := h.Perms.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, perms)
}

// AssignPermissions attaches permissions to a role. ADD unions, and
// re-assigning an already assigned id is a no-op; REPLACE sets exactly
// the given set. The response reflects the committed set.
func (h *RBACHandler) AssignPermissions(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role id"})
	}
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	mode := model.AssignMode(strings.ToUpper(strings.TrimSpace(req.Mode)))
	switch mode {
	case "":
		mode = model.AssignAdd
	case model.AssignAdd, model.AssignReplace:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mode must be ADD or REPLACE"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	// Every referenced permission must exist; a typo must not silently
	// shrink the set being assigned.
	found, err := h.Perms.GetByIDs(ctx, req.PermissionIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if len(found) != len(dedupe(req.PermissionIDs)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown permission id"})
	}

	if err := h.Roles.AssignPermissions(ctx, role.ID, req.PermissionIDs, mode); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assign failed"})
	}

	current, err := h.Roles.PermissionsForRole(ctx, role.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRoleResp(role, current))
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/access-control/internal/model"
	"github.com/clinicore/access-control/internal/repository"
)

type roleRegistryMock struct {
	list               func(ctx context.Context) ([]model.Role, error)
	getByID            func(ctx context.Context, id uint64) (model.Role, error)
	create             func(ctx context.Context, name, description string) (model.Role, error)
	deleteFn           func(ctx context.Context, id uint64) error
	assignPermissions  func(ctx context.Context, roleID uint64, ids []uint64, mode model.AssignMode) error
	permissionsForRole func(ctx context.Context, roleID uint64) ([]model.Permission, error)
}

func (m *roleRegistryMock) List(ctx context.Context) ([]model.Role, error) { return m.list(ctx) }
func (m *roleRegistryMock) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	return m.getByID(ctx, id)
}
func (m *roleRegistryMock) Create(ctx context.Context, name, description string) (model.Role, error) {
	return m.create(ctx, name, description)
}
func (m *roleRegistryMock) Delete(ctx context.Context, id uint64) error { return m.deleteFn(ctx, id) }
func (m *roleRegistryMock) AssignPermissions(ctx context.Context, roleID uint64, ids []uint64, mode model.AssignMode) error {
	return m.assignPermissions(ctx, roleID, ids, mode)
}
func (m *roleRegistryMock) PermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error) {
	return m.permissionsForRole(ctx, roleID)
}

type permCatalogMock struct {
	list     func(ctx context.Context) ([]model.Permission, error)
	getByIDs func(ctx context.Context, ids []uint64) ([]model.Permission, error)
}

func (m *permCatalogMock) List(ctx context.Context) ([]model.Permission, error) { return m.list(ctx) }
func (m *permCatalogMock) GetByIDs(ctx context.Context, ids []uint64) ([]model.Permission, error) {
	return m.getByIDs(ctx, ids)
}

func rbacEcho(h *RBACHandler) *echo.Echo {
	e := echo.New()
	e.GET("/rbac/roles", h.ListRoles)
	e.POST("/rbac/roles", h.CreateRole)
	e.DELETE("/rbac/roles/:id", h.DeleteRole)
	e.POST("/rbac/roles/:id/permissions", h.AssignPermissions)
	e.GET("/rbac/permissions", h.ListPermissions)
	return e
}

func rbacDo(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListRoles(t *testing.T) {
	roles := &roleRegistryMock{list: func(context.Context) ([]model.Role, error) {
		return []model.Role{{ID: 1, Name: "SUPER_ADMIN"}, {ID: 2, Name: "ADMIN"}}, nil
	}}
	e := rbacEcho(NewRBACHandler(roles, nil))

	rec := rbacDo(e, http.MethodGet, "/rbac/roles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Name != "SUPER_ADMIN" {
		t.Errorf("roles = %+v", out)
	}
}

func TestCreateRole(t *testing.T) {
	roles := &roleRegistryMock{create: func(_ context.Context, name, desc string) (model.Role, error) {
		if name != "AUDITOR" {
			t.Errorf("create name %q, want upper-cased AUDITOR", name)
		}
		return model.Role{ID: 9, Name: name, Description: desc}, nil
	}}
	e := rbacEcho(NewRBACHandler(roles, nil))

	rec := rbacDo(e, http.MethodPost, "/rbac/roles", `{"name":"auditor","description":"Compliance"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if rec := rbacDo(e, http.MethodPost, "/rbac/roles", `{"name":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d, want 400", rec.Code)
	}
}

func TestCreateRoleConflict(t *testing.T) {
	roles := &roleRegistryMock{create: func(context.Context, string, string) (model.Role, error) {
		return model.Role{}, repository.ErrRoleExists
	}}
	e := rbacEcho(NewRBACHandler(roles, nil))

	if rec := rbacDo(e, http.MethodPost, "/rbac/roles", `{"name":"ADMIN"}`); rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDeleteRole(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusNoContent},
		{"unknown", repository.ErrNotFound, http.StatusNotFound},
		{"in use", repository.ErrRoleInUse, http.StatusConflict},
	}
	for _, tc := range cases {
		roles := &roleRegistryMock{deleteFn: func(context.Context, uint64) error { return tc.err }}
		e := rbacEcho(NewRBACHandler(roles, nil))
		if rec := rbacDo(e, http.MethodDelete, "/rbac/roles/9", ""); rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}

	roles := &roleRegistryMock{deleteFn: func(context.Context, uint64) error { return nil }}
	e := rbacEcho(NewRBACHandler(roles, nil))
	if rec := rbacDo(e, http.MethodDelete, "/rbac/roles/not-a-number", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestListPermissions(t *testing.T) {
	perms := &permCatalogMock{list: func(context.Context) ([]model.Permission, error) {
		return []model.Permission{{ID: 1, Name: "patients:read"}}, nil
	}}
	e := rbacEcho(NewRBACHandler(nil, perms))

	rec := rbacDo(e, http.MethodGet, "/rbac/permissions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []model.Permission
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "patients:read" {
		t.Errorf("perms = %+v", out)
	}
}

func assignFixture(t *testing.T) (*roleRegistryMock, *permCatalogMock) {
	t.Helper()
	known := map[uint64]model.Permission{
		10: {ID: 10, Name: "patients:read"},
		11: {ID: 11, Name: "patients:update"},
	}
	roles := &roleRegistryMock{
		getByID: func(_ context.Context, id uint64) (model.Role, error) {
			if id != 2 {
				return model.Role{}, repository.ErrNotFound
			}
			return model.Role{ID: 2, Name: "DOCTOR"}, nil
		},
		assignPermissions: func(context.Context, uint64, []uint64, model.AssignMode) error { return nil },
		permissionsForRole: func(context.Context, uint64) ([]model.Permission, error) {
			return []model.Permission{known[10], known[11]}, nil
		},
	}
	perms := &permCatalogMock{getByIDs: func(_ context.Context, ids []uint64) ([]model.Permission, error) {
		var out []model.Permission
		for _, id := range ids {
			if p, ok := known[id]; ok {
				out = append(out, p)
			}
		}
		return out, nil
	}}
	return roles, perms
}

func TestAssignPermissions(t *testing.T) {
	roles, perms := assignFixture(t)
	var gotMode model.AssignMode
	var gotIDs []uint64
	roles.assignPermissions = func(_ context.Context, roleID uint64, ids []uint64, mode model.AssignMode) error {
		gotIDs, gotMode = ids, mode
		return nil
	}
	e := rbacEcho(NewRBACHandler(roles, perms))

	rec := rbacDo(e, http.MethodPost, "/rbac/roles/2/permissions", `{"permissionIds":[10,11],"mode":"replace"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotMode != model.AssignReplace || len(gotIDs) != 2 {
		t.Errorf("mode = %q ids = %v", gotMode, gotIDs)
	}

	var resp struct {
		Name        string             `json:"name"`
		Permissions []model.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// The response reflects the committed set, not the request payload.
	if resp.Name != "DOCTOR" || len(resp.Permissions) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAssignPermissionsDefaultsToAdd(t *testing.T) {
	roles, perms := assignFixture(t)
	var gotMode model.AssignMode
	roles.assignPermissions = func(_ context.Context, _ uint64, _ []uint64, mode model.AssignMode) error {
		gotMode = mode
		return nil
	}
	e := rbacEcho(NewRBACHandler(roles, perms))

	if rec := rbacDo(e, http.MethodPost, "/rbac/roles/2/permissions", `{"permissionIds":[10]}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotMode != model.AssignAdd {
		t.Errorf("mode = %q, want ADD", gotMode)
	}
}

func TestAssignPermissionsRejects(t *testing.T) {
	roles, perms := assignFixture(t)
	e := rbacEcho(NewRBACHandler(roles, perms))

	if rec := rbacDo(e, http.MethodPost, "/rbac/roles/404/permissions", `{"permissionIds":[10]}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown role: status = %d, want 404", rec.Code)
	}
	if rec := rbacDo(e, http.MethodPost, "/rbac/roles/2/permissions", `{"permissionIds":[10,999]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown permission: status = %d, want 400", rec.Code)
	}
	if rec := rbacDo(e, http.MethodPost, "/rbac/roles/2/permissions", `{"permissionIds":[10],"mode":"MERGE"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode: status = %d, want 400", rec.Code)
	}
}

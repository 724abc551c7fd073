package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/access-control/internal/authz"
	"github.com/clinicore/access-control/internal/utils"
)

const guardSecret = "guard-test-secret"

// permsMock returns a fixed role -> permission set mapping, or an error.
type permsMock struct {
	sets map[string]map[string]struct{}
	err  error
}

func (m *permsMock) PermissionSetForRoleName(_ context.Context, role string) (map[string]struct{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	set, ok := m.sets[role]
	if !ok {
		return map[string]struct{}{}, nil
	}
	return set, nil
}

func permSet(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func bearerFor(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(guardSecret, userID, role, "clinic-a", 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

// callGuard runs one request through Authorize with an echo handler
// that records whether it was reached and what identity it saw.
func callGuard(t *testing.T, perms PermissionSource, required, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	reached := false
	e.GET("/probe", func(c echo.Context) error {
		reached = true
		ident, ok := CurrentIdentity(c)
		if !ok {
			t.Error("handler reached without identity in context")
		}
		return c.JSON(http.StatusOK, ident)
	}, Authorize(guardSecret, perms, required))

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, reached
}

func TestAuthorizeMissingToken(t *testing.T) {
	perms := &permsMock{}
	for _, header := range []string{"", "Basic abc", "bearer lowercase", "Token xyz"} {
		rec, reached := callGuard(t, perms, "patients:read", header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if reached {
			t.Errorf("header %q admitted without a bearer token", header)
		}
	}
}

func TestAuthorizeInvalidToken(t *testing.T) {
	rec, reached := callGuard(t, &permsMock{}, "patients:read", "Bearer not.a.jwt")
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("status = %d, reached = %v; want 401, false", rec.Code, reached)
	}
}

func TestAuthorizeExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": float64(5), "role": "DOCTOR",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(guardSecret))
	if err != nil {
		t.Fatal(err)
	}
	rec, reached := callGuard(t, &permsMock{}, "patients:read", "Bearer "+signed)
	if rec.Code != http.StatusUnauthorized || reached {
		t.Fatalf("status = %d, reached = %v; want 401, false", rec.Code, reached)
	}
}

func TestAuthorizeAdmitsGrantedRole(t *testing.T) {
	perms := &permsMock{sets: map[string]map[string]struct{}{
		"DOCTOR": permSet("patients:read", "patients:update"),
	}}
	rec, reached := callGuard(t, perms, "patients:read", bearerFor(t, 5, "DOCTOR"))
	if rec.Code != http.StatusOK || !reached {
		t.Fatalf("status = %d, reached = %v; want 200, true", rec.Code, reached)
	}

	var ident struct {
		UserID uint64 `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ident); err != nil {
		t.Fatal(err)
	}
	if ident.UserID != 5 || ident.Role != "DOCTOR" {
		t.Errorf("identity = %+v", ident)
	}
}

func TestAuthorizeForbidsMissingPermission(t *testing.T) {
	perms := &permsMock{sets: map[string]map[string]struct{}{
		"DOCTOR": permSet("patients:read"),
	}}
	rec, reached := callGuard(t, perms, "billing:delete", bearerFor(t, 5, "DOCTOR"))
	if rec.Code != http.StatusForbidden || reached {
		t.Fatalf("status = %d, reached = %v; want 403, false", rec.Code, reached)
	}
}

func TestAuthorizeSuperAdminBypass(t *testing.T) {
	// No permission set configured at all; the lookup must not even run.
	perms := &permsMock{err: errors.New("lookup must not be called")}
	rec, reached := callGuard(t, perms, "anything:at-all", bearerFor(t, 1, authz.RoleSuperAdmin))
	if rec.Code != http.StatusOK || !reached {
		t.Fatalf("status = %d, reached = %v; want 200, true", rec.Code, reached)
	}
}

func TestAuthorizeLookupFailure(t *testing.T) {
	perms := &permsMock{err: errors.New("db down")}
	rec, reached := callGuard(t, perms, "patients:read", bearerFor(t, 5, "DOCTOR"))
	if rec.Code != http.StatusInternalServerError || reached {
		t.Fatalf("status = %d, reached = %v; want 500, false", rec.Code, reached)
	}
}

func TestAuthorizeSeesFreshAssignments(t *testing.T) {
	// The same guard instance must reflect a permission grant on the
	// very next request; there is no cache to invalidate.
	perms := &permsMock{sets: map[string]map[string]struct{}{
		"AUDITOR": permSet(),
	}}
	header := bearerFor(t, 9, "AUDITOR")

	rec, _ := callGuard(t, perms, "billing:read", header)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("before grant: status = %d, want 403", rec.Code)
	}

	perms.sets["AUDITOR"] = permSet("billing:read")
	rec, _ = callGuard(t, perms, "billing:read", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("after grant: status = %d, want 200", rec.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		ident, ok := CurrentIdentity(c)
		if !ok {
			t.Error("identity missing")
		}
		return c.JSON(http.StatusOK, ident)
	}, Authenticate(guardSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearerFor(t, 7, "PATIENT"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
}

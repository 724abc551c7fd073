package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/access-control/internal/authz"
	"github.com/clinicore/access-control/internal/config"
	"github.com/clinicore/access-control/internal/middleware"
	"github.com/clinicore/access-control/internal/model"
	"github.com/clinicore/access-control/internal/obs"
	"github.com/clinicore/access-control/internal/repository"
	"github.com/clinicore/access-control/internal/service"
	"github.com/clinicore/access-control/internal/utils"
)

// minPasswordLen is the strength floor enforced at registration.
const minPasswordLen = 8

// dbTimeout bounds every database round trip started by a handler.
const dbTimeout = 5 * time.Second

// UserStore is the slice of the credential store the auth handlers
// need. *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByEmail(ctx context.Context, tenantID, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, id uint64, upd model.UserUpdate) (model.User, error)
}

// RoleDirectory validates role names against the registry.
type RoleDirectory interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
}

// TokenIssuer is the token lifecycle as the handlers see it.
// *service.TokenService satisfies it.
type TokenIssuer interface {
	Issue(ctx context.Context, u model.User) (service.TokenPair, error)
	Refresh(ctx context.Context, raw string) (service.TokenPair, model.User, error)
	RevokeByRefresh(ctx context.Context, raw string) error
	RevokeUser(ctx context.Context, userID uint64) error
}

// PasswordHasher gates bcrypt work. *service.Hasher satisfies it.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, hash, plain string) bool
	Burn(ctx context.Context, plain string)
}

// AuthHandler bundles dependencies for the credential endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Roles  RoleDirectory
	Tokens TokenIssuer
	Hasher PasswordHasher
}

func NewAuthHandler(cfg config.Config, users UserStore, roles RoleDirectory, tokens TokenIssuer, hasher PasswordHasher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Roles: roles, Tokens: tokens, Hasher: hasher}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type userPart struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}
type authResp struct {
	// ID mirrors user.id at the top level; clients read it from either
	// place.
	ID             uint64    `json:"id"`
	User           userPart  `json:"user"`
	AccessToken    string    `json:"accessToken"`
	RefreshToken   string    `json:"refreshToken"`
	AccessExpires  time.Time `json:"accessExpires"`
	RefreshExpires time.Time `json:"refreshExpires"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID, FirstName: u.FirstName, LastName: u.LastName}
}

func pairResp(u model.User, pair service.TokenPair) authResp {
	return authResp{
		ID:             u.ID,
		User:           toUserPart(u),
		AccessToken:    pair.Access.Token,
		RefreshToken:   pair.Refresh.Raw, // raw back to client, only the hash is stored
		AccessExpires:  pair.Access.Exp,
		RefreshExpires: pair.Refresh.Exp,
	}
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too weak"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = authz.RolePatient
	}
	tenant := strings.TrimSpace(req.TenantID)
	if tenant == "" {
		tenant = h.Cfg.DefaultTenant
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	// The role must exist in the registry; built-ins are seeded at
	// startup, custom roles come from the RBAC API.
	if _, err := h.Roles.GetByName(ctx, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role lookup failed"})
	}

	hash, err := h.Hasher.Hash(ctx, req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}

	uid, err := h.Users.Create(ctx, model.User{
		TenantID:     tenant,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		// The role passed the lookup above but was deleted before the
		// insert committed; the foreign key reports it.
		if errors.Is(err, repository.ErrUnknownRole) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	u := model.User{ID: uid, TenantID: tenant, Email: req.Email, Role: role,
		FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName)}
	pair, err := h.Tokens.Issue(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, pairResp(u, pair))
}

// Login: verify credentials and return a new pair. The response for a
// wrong password and for an unknown email is the same value, and both
// paths run one bcrypt comparison.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	tenant := strings.TrimSpace(req.TenantID)
	if tenant == "" {
		tenant = h.Cfg.DefaultTenant
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, tenant, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.Hasher.Burn(ctx, req.Password)
			obs.LoginAttempt("denied")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !h.Hasher.Verify(ctx, u.PasswordHash, req.Password) || !u.IsActive {
		obs.LoginAttempt("denied")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	pair, err := h.Tokens.Issue(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	obs.LoginAttempt("ok")
	return c.JSON(http.StatusOK, pairResp(u, pair))
}

// Profile returns the authenticated user's record. Identity comes from
// the guard; this handler never touches the raw token.
func (h *AuthHandler) Profile(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// Refresh rotates the presented refresh token and returns a new pair.
// Replayed tokens fail here with 401 after their chain has been torn
// down by the token service.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	pair, u, err := h.Tokens.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, pairResp(u, pair))
}

// Logout revokes sessions. With a refreshToken in the body the token's
// whole rotation chain is revoked; with only a valid bearer token every
// chain of the calling user is revoked (logout-all).
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if raw != "" {
		if err := h.Tokens.RevokeByRefresh(ctx, raw); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if err := h.Tokens.RevokeUser(ctx, claims.UserID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refreshToken"})
}

package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/clinicore/access-control/internal/authz"
	"github.com/clinicore/access-control/internal/handler"
	"github.com/clinicore/access-control/internal/middleware"
	"github.com/clinicore/access-control/internal/obs"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: a health check for load balancers and the
// Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Expose collected counters to a Prometheus scraper.
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /auth; the
// rateLimit middleware is applied to the two credential-bearing endpoints so
// that password guessing is throttled before it reaches bcrypt.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/auth")
	// Register a POST endpoint to handle user registration at /auth/register.
	g.POST("/register", a.Register, rateLimit)
	// Register a POST endpoint to handle user login at /auth/login.
	g.POST("/login", a.Login, rateLimit)
	// Register a POST endpoint to exchange a refresh token at /auth/refresh.
	// This rotates the refresh token: the presented token is consumed and a
	// successor in the same chain is returned.
	g.POST("/refresh", a.Refresh)
	// Logout does not require JWT authentication.  The handler accepts a JSON
	// body containing a `refreshToken` and will revoke that token's chain; a
	// bearer access token alone revokes every session of its user.
	g.POST("/logout", a.Logout)

	// Profile requires a valid access token but no particular permission, so
	// it sits behind Authenticate rather than the full guard.
	g.GET("/profile", a.Profile, middleware.Authenticate(jwtSecret))
}

// RegisterRBAC registers the role and permission administration endpoints.
// Every route passes through the authorization guard with an "rbac" resource
// permission; the permission catalog additionally sits behind the Redis
// response cache because it is read-heavy and changes only at deploy time.
func RegisterRBAC(e *echo.Echo, h *handler.RBACHandler, jwtSecret string, perms middleware.PermissionSource, catalogCache echo.MiddlewareFunc) {
	guard := func(action string) echo.MiddlewareFunc {
		return middleware.Authorize(jwtSecret, perms, authz.Permission(authz.ResourceRBAC, action))
	}

	g := e.Group("/rbac")
	g.GET("/roles", h.ListRoles, guard(authz.ActionRead))
	g.POST("/roles", h.CreateRole, guard(authz.ActionCreate))
	g.DELETE("/roles/:id", h.DeleteRole, guard(authz.ActionDelete))
	g.POST("/roles/:id/permissions", h.AssignPermissions, guard(authz.ActionUpdate))
	g.GET("/permissions", h.ListPermissions, guard(authz.ActionRead), catalogCache)
}

package app

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jcallahan/inkwell/internal/middleware"
	"github.com/jcallahan/inkwell/internal/modules/analytics"
	"github.com/jcallahan/inkwell/internal/modules/auth"
	"github.com/jcallahan/inkwell/internal/modules/posts"
	"github.com/jcallahan/inkwell/internal/modules/users"
)

// Modules holds the fully-wired handlers each module exposes, plus the auth
// service the session middleware needs. main.go builds this after
// constructing the repository/service/handler chain.
type Modules struct {
	AuthService auth.AuthService
	Auth        *auth.Handler
	Posts       *posts.Handler
	Users       *users.Handler
	Analytics   *analytics.Handler
}

// RegisterRoutes sets up all application routes. It registers the health
// check directly and delegates to each module's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// module is added, its routes are registered here.
func (a *App) RegisterRoutes(m Modules) {
	e := a.Echo

	// Health check endpoint for Docker health monitoring. Verifies both
	// backing stores are actually reachable, not just that the process is up.
	e.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "database": "unreachable",
			})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded", "redis": "unreachable",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Session resolution runs on every request: it attaches the current user
	// to the context when the cookie holds a valid token, and does nothing
	// for anonymous requests. Route guards below build on it.
	e.Use(auth.WithUser(m.AuthService))

	api := e.Group("/api")

	requireAuth := auth.RequireAuth()
	requireAdmin := auth.RequireAdmin()

	// Credential endpoints are rate limited per IP to slow down brute force.
	authGroup := api.Group("/auth", middleware.RateLimit(10, time.Minute))
	auth.RegisterRoutes(authGroup, m.Auth)

	posts.RegisterRoutes(api, m.Posts, requireAuth, requireAdmin)
	users.RegisterRoutes(api, m.Users, requireAuth, requireAdmin)
	analytics.RegisterRoutes(api, m.Analytics, requireAdmin)
}

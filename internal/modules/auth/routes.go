package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the auth endpoints on the given group
// (mounted at /api/auth by the app).
func RegisterRoutes(g *echo.Group, h *Handler) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
}

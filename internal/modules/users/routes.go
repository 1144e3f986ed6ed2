package users

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the user endpoints on the given group (mounted
// at /api by the app). The directory is public; /me requires authentication
// and the moderation endpoint requires the admin role.
func RegisterRoutes(api *echo.Group, h *Handler, requireAuth, requireAdmin echo.MiddlewareFunc) {
	api.GET("/me", h.Me, requireAuth)
	api.PUT("/me", h.UpdateMe, requireAuth)

	g := api.Group("/users")
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.GET("/:id/posts", h.ListPosts)

	api.PUT("/admin/users/:id/active", h.SetActive, requireAdmin)
}

package posts

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the post endpoints on the given group (mounted
// at /api by the app). Reads are public; writes require authentication and
// moderation requires the admin role.
func RegisterRoutes(api *echo.Group, h *Handler, requireAuth, requireAdmin echo.MiddlewareFunc) {
	g := api.Group("/posts")

	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.GET("/:id", h.GetByID)

	g.POST("", h.Create, requireAuth)
	g.POST("/:id/comments", h.AddComment, requireAuth)

	g.DELETE("/:id", h.Delete, requireAdmin)
}

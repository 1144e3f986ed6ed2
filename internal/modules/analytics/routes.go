package analytics

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the analytics endpoints on the given group
// (mounted at /api by the app). The public stats need no auth; the admin
// stats require the admin role.
func RegisterRoutes(api *echo.Group, h *Handler, requireAdmin echo.MiddlewareFunc) {
	g := api.Group("/analytics")
	g.GET("", h.Summary)
	g.GET("/activity", h.RecentActivity)

	api.GET("/admin/stats", h.AdminStats, requireAdmin)
}

package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for site statistics.
type Handler struct {
	service AnalyticsService
}

// NewHandler creates a new analytics handler.
func NewHandler(service AnalyticsService) *Handler {
	return &Handler{service: service}
}

// Summary returns the public site totals (GET /api/analytics).
func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.service.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// RecentActivity returns the latest events (GET /api/analytics/activity).
func (h *Handler) RecentActivity(c echo.Context) error {
	events, err := h.service.RecentActivity(c.Request().Context())
	if err != nil {
		return err
	}
	if events == nil {
		events = []ActivityEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// AdminStats returns totals plus session counters
// (GET /api/admin/stats, admin only).
func (h *Handler) AdminStats(c echo.Context) error {
	stats, err := h.service.AdminStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

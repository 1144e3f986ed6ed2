package users

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/modules/auth"
	"github.com/jcallahan/inkwell/internal/modules/posts"
)

// Handler handles HTTP requests for the user directory, the current-user
// endpoints, and admin account moderation.
type Handler struct {
	service UserService
	posts   PostsProvider
}

// NewHandler creates a new users handler with the given dependencies.
func NewHandler(service UserService, postsProvider PostsProvider) *Handler {
	return &Handler{service: service, posts: postsProvider}
}

// Me returns the current user (GET /api/me, authenticated).
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, auth.GetUser(c))
}

// UpdateMe updates the current user's profile (PUT /api/me, authenticated).
func (h *Handler) UpdateMe(c echo.Context) error {
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	profile, err := h.service.UpdateProfile(c.Request().Context(), auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// List returns all active users (GET /api/users).
func (h *Handler) List(c echo.Context) error {
	profiles, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return c.JSON(http.StatusOK, profiles)
}

// GetByID returns one user with their posts (GET /api/users/:id).
func (h *Handler) GetByID(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	detail, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// ListPosts returns a user's published posts (GET /api/users/:id/posts).
func (h *Handler) ListPosts(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	userPosts, err := h.posts.ListByAuthor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if userPosts == nil {
		userPosts = []posts.Post{}
	}
	return c.JSON(http.StatusOK, userPosts)
}

// SetActive activates or deactivates an account
// (PUT /api/admin/users/:id/active, admin only).
func (h *Handler) SetActive(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	var req SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if err := h.service.SetActive(c.Request().Context(), id, req.Active); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "active": req.Active})
}

// parseID parses a positive numeric path parameter.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid id")
	}
	return id, nil
}

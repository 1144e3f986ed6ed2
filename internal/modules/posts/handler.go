package posts

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/modules/auth"
)

// Handler handles HTTP requests for posts and comments. Handlers are thin:
// they bind the request, call the service, and write the response.
type Handler struct {
	service PostService
}

// NewHandler creates a new posts handler with the given service.
func NewHandler(service PostService) *Handler {
	return &Handler{service: service}
}

// List returns all published posts (GET /api/posts).
func (h *Handler) List(c echo.Context) error {
	posts, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

// GetByID returns one post with its comments (GET /api/posts/:id).
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

// Search returns posts matching ?q= (GET /api/posts/search).
func (h *Handler) Search(c echo.Context) error {
	posts, err := h.service.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

// Create creates a post authored by the current user (POST /api/posts,
// authenticated).
func (h *Handler) Create(c echo.Context) error {
	var req CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	post, err := h.service.Create(c.Request().Context(), auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

// Delete unpublishes a post (DELETE /api/posts/:id, admin only).
func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "deleted_id": id})
}

// AddComment adds a comment by the current user (POST /api/posts/:id/comments,
// authenticated).
func (h *Handler) AddComment(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	var req CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	comment, err := h.service.AddComment(c.Request().Context(), id, auth.GetUserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// parseID parses a positive numeric path parameter.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid id")
	}
	return id, nil
}

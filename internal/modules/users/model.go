// Package users implements the public user directory and profile
// management: cached listings, per-user pages with their posts, the
// current-user endpoints, and admin account moderation.
package users

import (
	"time"

	"github.com/jcallahan/inkwell/internal/modules/posts"
)

// Profile is the public view of a user: safe fields only, no password hash
// ever enters this struct.
type Profile struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Bio        *string   `json:"bio,omitempty"`
	Avatar     *string   `json:"avatar,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
	PostsCount int       `json:"posts_count"`
}

// UserDetail is the single-user payload: the profile plus the user's
// published posts.
type UserDetail struct {
	Profile
	Posts []posts.Post `json:"posts"`
}

// --- Request DTOs ---

// UpdateProfileRequest holds the data submitted to PUT /api/me. Nil fields
// are left unchanged.
type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

// SetActiveRequest holds the data submitted to
// PUT /api/admin/users/:id/active.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// Package auth handles user accounts, session management, and password
// security for Inkwell. It mints signed session tokens backed by persisted
// session rows, so a token is only as valid as the row behind it: deleting
// the row (logout, admin revocation) kills the session even though the
// token's signature would still verify.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User roles. Stored as an ENUM in MariaDB.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered Inkwell user. This is the domain model used
// throughout the application. Database scanning and JSON marshaling use this
// struct directly.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON responses.
	Role         string    `json:"role"`
	Bio          *string   `json:"bio,omitempty"`
	Avatar       *string   `json:"avatar,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsActive     bool      `json:"is_active"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// WithoutHash returns a copy of the user with the password hash cleared.
// Every User value that crosses a boundary (API response, context, cache
// entry) goes through this first -- the json:"-" tag alone is not enough
// because cached values are re-encoded.
func (u *User) WithoutHash() *User {
	clean := *u
	clean.PasswordHash = ""
	return &clean
}

// Session is a server-persisted record proving a user recently
// authenticated. One row per login; deleted on logout or when found expired
// during validation.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenClaims is the payload of a signed session token: the session id and
// user id, plus the registered expiry claim mirroring the session row's
// expiry.
type TokenClaims struct {
	SessionID string `json:"sid"`
	UserID    int64  `json:"uid"`
	jwt.RegisteredClaims
}

// --- Request DTOs (bound from HTTP requests) ---

// SignupRequest holds the data submitted to POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest holds the data submitted to POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// SignupInput is the validated input for creating a new user.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

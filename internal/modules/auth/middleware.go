package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/jcallahan/inkwell/internal/apperror"
)

// Context key for storing the authenticated user in Echo context. Other
// modules access it via the exported getter functions below.
const contextKeyUser = "auth_user"

// WithUser returns middleware that resolves the session cookie (if any) to
// a user and stores it in the request context. It runs on every route,
// including public ones: anonymous requests simply pass through with no
// user set. It never fails the request.
func WithUser(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if user := service.CurrentUser(c.Request().Context(), token); user != nil {
				c.Set(contextKeyUser, user)
			}
			return next(c)
		}
	}
}

// RequireAuth returns middleware that rejects requests without an
// authenticated user. Must be registered after WithUser.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUser(c) == nil {
				return apperror.NewUnauthorized("authentication required")
			}
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that rejects requests from users without
// the admin role. Must be registered after WithUser; implies RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetUser(c)
			if user == nil {
				return apperror.NewUnauthorized("authentication required")
			}
			if !user.IsAdmin() {
				return apperror.NewForbidden("admin access required")
			}
			return next(c)
		}
	}
}

// --- Exported getters for other modules ---

// GetUser retrieves the authenticated user from the Echo context.
// Returns nil if the request is anonymous.
func GetUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns 0 if the request is anonymous.
func GetUserID(c echo.Context) int64 {
	user := GetUser(c)
	if user == nil {
		return 0
	}
	return user.ID
}

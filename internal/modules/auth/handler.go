package auth

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jcallahan/inkwell/internal/apperror"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "inkwell_session"

// Handler handles HTTP requests for authentication (signup, login, logout).
// Handlers are thin: they bind the request, call the service, and write the
// response. No business logic lives here.
type Handler struct {
	service    AuthService
	sessionTTL time.Duration
}

// NewHandler creates a new auth handler with the given service. sessionTTL
// drives the cookie Max-Age and must match the service's session lifetime.
func NewHandler(service AuthService, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, sessionTTL: sessionTTL}
}

// Signup processes POST /api/auth/signup. On success the new user is logged
// in immediately: the response carries the safe user fields and the session
// cookie.
func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	if msg := validateSignup(&req); msg != "" {
		return apperror.NewBadRequest(msg)
	}

	user, token, err := h.service.Signup(c.Request().Context(), SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    user,
	})
}

// Login processes POST /api/auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewBadRequest("email and password are required")
	}

	user, token, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    user,
	})
}

// Logout processes POST /api/auth/logout. It revokes the session referenced
// by the cookie (if the cookie verifies) and clears the cookie. Always
// responds success -- logging out without a session is not an error.
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if sessionID, _, ok := h.service.Verify(token); ok {
			// Revocation failure is not worth failing a logout over; the
			// cookie is cleared regardless and the row expires on its own.
			_ = h.service.Revoke(c.Request().Context(), sessionID)
		}
	}

	clearSessionCookie(c)

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// --- Cookie helpers ---

// getSessionToken reads the session token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure if behind TLS, and SameSite=Lax.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// --- Validation helpers ---

// validateSignup performs server-side validation on the signup request.
// Returns an error message or empty string.
func validateSignup(req *SignupRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if len(req.Name) < 2 {
		return "name must be at least 2 characters"
	}
	if len(req.Name) > 255 {
		return "name must be at most 255 characters"
	}
	if req.Email == "" {
		return "email is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "email is not valid"
	}
	if req.Password == "" {
		return "password is required"
	}
	if len(req.Password) < 6 {
		return "password must be at least 6 characters"
	}
	if len(req.Password) > 128 {
		return "password must be at most 128 characters"
	}
	return ""
}

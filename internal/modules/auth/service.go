package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
)

// bcryptCost is the adaptive work factor for password hashing. 12 doubles
// the work of the library default and stays under ~300ms on current server
// hardware.
const bcryptCost = 12

// AuthService defines the business logic contract for authentication.
// Handlers and middleware call these methods -- they never touch the
// repositories directly.
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*User, string, error)
	Login(ctx context.Context, input LoginInput) (*User, string, error)

	// Issue mints a fresh session for the user: one persisted session row
	// plus a signed token embedding the session and user ids.
	Issue(ctx context.Context, userID int64) (string, error)

	// Verify checks a token's signature and expiry claim. It reports
	// failure through ok, never through an error -- malformed input is
	// normal traffic, not an exceptional condition.
	Verify(token string) (sessionID string, userID int64, ok bool)

	// Resolve maps a session id to its owning user. A missing, expired
	// (deleted lazily), or deactivated-owner session yields (nil, nil).
	Resolve(ctx context.Context, sessionID string) (*User, error)

	// Revoke deletes the session row. Idempotent.
	Revoke(ctx context.Context, sessionID string) error

	// CurrentUser composes Verify and Resolve over a raw cookie value.
	// Every failure collapses to nil -- this runs on anonymous requests too.
	CurrentUser(ctx context.Context, token string) *User
}

// authService implements AuthService with bcrypt hashing, HS256 session
// tokens, and MariaDB-persisted sessions.
type authService struct {
	users      UserRepository
	sessions   SessionRepository
	cache      *cache.Cache
	secret     []byte
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(users UserRepository, sessions SessionRepository, c *cache.Cache, secret string, sessionTTL time.Duration) AuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		cache:      c,
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

// Signup creates a new user account and logs it in. It validates email
// uniqueness, hashes the password with bcrypt, persists the user, and issues
// a session token. The cached user listings and analytics become stale, so
// both tags are invalidated before returning.
func (s *authService) Signup(ctx context.Context, input SignupInput) (*User, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Check for duplicates before doing expensive hashing. The UNIQUE
	// constraint still backstops the race in Create.
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, "", apperror.NewConflict("an account with this email already exists")
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := time.Now().UTC()
	user := &User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		JoinedAt:     now,
		UpdatedAt:    now,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, "", appErr
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagUsers, cache.TagAnalytics); err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("invalidating caches after signup: %w", err))
	}

	token, err := s.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user signed up",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user.WithoutHash(), token, nil
}

// Login authenticates a user by email and password and issues a new session.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, input LoginInput) (*User, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists -- use generic message.
		if apperror.SafeCode(err) == 404 {
			return nil, "", apperror.NewUnauthorized("invalid email or password")
		}
		return nil, "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	// Deactivated accounts get the same generic rejection.
	if !user.IsActive {
		return nil, "", apperror.NewUnauthorized("invalid email or password")
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, "", apperror.NewUnauthorized("invalid email or password")
	}

	token, err := s.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user.WithoutHash(), token, nil
}

// Issue generates a fresh session id, persists the session row, and signs a
// token whose expiry claim mirrors the row's expiry. Storage failures
// propagate -- there is no partial success.
func (s *authService) Issue(ctx context.Context, userID int64) (string, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("persisting session: %w", err))
	}

	claims := TokenClaims{
		SessionID: session.ID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("signing session token: %w", err))
	}

	return token, nil
}

// Verify checks the token signature and expiry claim and returns the
// embedded session and user ids. A token that fails for any reason
// (malformed, expired, tampered, wrong algorithm) yields ok=false.
func (s *authService) Verify(token string) (string, int64, bool) {
	claims := &TokenClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", 0, false
	}
	if claims.SessionID == "" || claims.UserID == 0 {
		return "", 0, false
	}

	return claims.SessionID, claims.UserID, true
}

// Resolve looks up the session row and returns the owning user. An absent
// row means the session was revoked or swept; an expired row is deleted on
// the spot (lazy expiry). Both cases, and a deactivated owner, resolve to
// (nil, nil) -- only storage failures produce an error.
func (s *authService) Resolve(ctx context.Context, sessionID string) (*User, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if apperror.SafeCode(err) == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		// Lazy cleanup: the row stays until someone presents it expired.
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			slog.Warn("failed to delete expired session",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		}
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if apperror.SafeCode(err) == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}

	return user.WithoutHash(), nil
}

// Revoke deletes the session row unconditionally. Revoking a session that
// does not exist is not an error.
func (s *authService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking session: %w", err))
	}
	return nil
}

// CurrentUser resolves a raw cookie value to a user. Missing cookie, bad
// token, dead session, and storage failure all collapse to nil; storage
// failures are logged but never surfaced, because this runs unconditionally
// on every request including anonymous ones.
func (s *authService) CurrentUser(ctx context.Context, token string) *User {
	if token == "" {
		return nil
	}

	sessionID, _, ok := s.Verify(token)
	if !ok {
		return nil
	}

	user, err := s.Resolve(ctx, sessionID)
	if err != nil {
		slog.Error("session resolution failed, treating request as anonymous",
			slog.Any("error", err),
		)
		return nil
	}

	return user
}

// --- Password hashing (bcrypt) ---

// HashPassword computes a salted bcrypt hash of the password at the
// configured cost. Exported for the seed command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against a bcrypt hash.
// bcrypt's comparison is constant-time over the derived key.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

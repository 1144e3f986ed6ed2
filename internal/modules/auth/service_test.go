package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
)

// --- Mock Repositories ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn      func(ctx context.Context, user *User) error
	findByIDFn    func(ctx context.Context, id int64) (*User, error)
	findByEmailFn func(ctx context.Context, email string) (*User, error)
	emailExistsFn func(ctx context.Context, email string) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = 1
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

// memSessionRepo implements SessionRepository with an in-memory map so
// issue/verify/resolve round trips work against real stored rows.
type memSessionRepo struct {
	sessions map[string]*Session
	createFn func(ctx context.Context, session *Session) error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*Session)}
}

func (m *memSessionRepo) Create(ctx context.Context, session *Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, id string) (*Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperror.NewNotFound("session not found")
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for id, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- Test Helpers ---

const testSecret = "test-secret-key-for-signing-tokens"

// newTestService creates an authService backed by miniredis for the cache
// and the given mock repositories.
func newTestService(t *testing.T, users UserRepository, sessions SessionRepository) (*authService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &authService{
		users:      users,
		sessions:   sessions,
		cache:      cache.New(rdb),
		secret:     []byte(testSecret),
		sessionTTL: 24 * time.Hour,
	}, mr
}

// activeUser returns a user row with the given hash, suitable for login tests.
func activeUser(hash string) *User {
	return &User{
		ID:           42,
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Issue / Verify Tests ---

func TestIssueVerify_RoundTrip(t *testing.T) {
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, &mockUserRepo{}, sessions)

	token, err := svc.Issue(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessionID, userID, ok := svc.Verify(token)
	if !ok {
		t.Fatal("expected freshly issued token to verify")
	}
	if userID != 42 {
		t.Errorf("expected user id 42, got %d", userID)
	}
	if _, exists := sessions.sessions[sessionID]; !exists {
		t.Error("expected a persisted session row for the token's session id")
	}
}

func TestIssue_SessionWriteFailure(t *testing.T) {
	sessions := newMemSessionRepo()
	sessions.createFn = func(ctx context.Context, session *Session) error {
		return errors.New("db write error")
	}
	svc, _ := newTestService(t, &mockUserRepo{}, sessions)

	_, err := svc.Issue(context.Background(), 42)
	assertAppError(t, err, 500)
}

func TestVerify_RejectsTamperedToken(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	token, err := svc.Issue(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Flip a character in the payload segment.
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	if _, _, ok := svc.Verify(string(tampered)); ok {
		t.Error("expected tampered token to be rejected")
	}
}

func TestVerify_RejectsMalformedToken(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, _, ok := svc.Verify(token); ok {
			t.Errorf("expected %q to be rejected", token)
		}
	}
}

func TestVerify_RejectsExpiredClaim(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	// Sign a token with the right secret but an expiry in the past.
	claims := TokenClaims{
		SessionID: "some-session-id",
		UserID:    42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	if _, _, ok := svc.Verify(token); ok {
		t.Error("expected expired token to be rejected")
	}
}

func TestVerify_RejectsWrongAlgorithm(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	claims := TokenClaims{
		SessionID: "some-session-id",
		UserID:    42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	if _, _, ok := svc.Verify(token); ok {
		t.Error("expected token signed with a different algorithm to be rejected")
	}
}

// --- Resolve Tests ---

func TestResolve_ReturnsUserWithoutHash(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*User, error) {
			return activeUser("some-hash"), nil
		},
	}
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, users, sessions)

	token, err := svc.Issue(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID, _, _ := svc.Verify(token)

	user, err := svc.Resolve(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.ID != 42 {
		t.Errorf("expected user 42, got %d", user.ID)
	}
	if user.PasswordHash != "" {
		t.Error("expected password hash to be stripped")
	}
}

func TestResolve_UnknownSessionIsNil(t *testing.T) {
	svc, _ := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	user, err := svc.Resolve(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user for unknown session")
	}
}

func TestResolve_ExpiredSessionIsDeletedLazily(t *testing.T) {
	sessions := newMemSessionRepo()
	sessions.sessions["expired"] = &Session{
		ID:        "expired",
		UserID:    42,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc, _ := newTestService(t, &mockUserRepo{}, sessions)

	user, err := svc.Resolve(context.Background(), "expired")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user for expired session")
	}
	if _, exists := sessions.sessions["expired"]; exists {
		t.Error("expected expired session row to be deleted on resolution")
	}
}

func TestResolve_DeactivatedUserIsNil(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*User, error) {
			u := activeUser("some-hash")
			u.IsActive = false
			return u, nil
		},
	}
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, users, sessions)

	token, _ := svc.Issue(context.Background(), 42)
	sessionID, _, _ := svc.Verify(token)

	user, err := svc.Resolve(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user for deactivated account")
	}
}

// --- Revoke Tests ---

func TestRevoke_InvalidatesSession(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*User, error) {
			return activeUser("some-hash"), nil
		},
	}
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, users, sessions)

	token, _ := svc.Issue(context.Background(), 42)
	sessionID, _, _ := svc.Verify(token)

	if err := svc.Revoke(context.Background(), sessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The token still verifies (signature and expiry are intact) but no
	// longer resolves to a user.
	if _, _, ok := svc.Verify(token); !ok {
		t.Error("expected revoked token to still pass signature verification")
	}
	user, err := svc.Resolve(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected revoked session to resolve to nil")
	}

	// Revoking again is a no-op, not an error.
	if err := svc.Revoke(context.Background(), sessionID); err != nil {
		t.Errorf("expected idempotent revoke, got %v", err)
	}
}

// --- CurrentUser Tests ---

func TestCurrentUser_AnonymousVariants(t *testing.T) {
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, &mockUserRepo{}, sessions)

	// Valid-but-revoked token.
	token, _ := svc.Issue(context.Background(), 42)
	sessionID, _, _ := svc.Verify(token)
	if err := svc.Revoke(context.Background(), sessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]string{
		"empty":   "",
		"garbage": "not.a.token",
		"revoked": token,
	}
	for name, tok := range cases {
		if user := svc.CurrentUser(context.Background(), tok); user != nil {
			t.Errorf("%s: expected nil user, got %+v", name, user)
		}
	}
}

func TestCurrentUser_StorageFailureIsAnonymous(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*User, error) {
			return nil, errors.New("db connection lost")
		},
	}
	sessions := newMemSessionRepo()
	svc, _ := newTestService(t, users, sessions)

	token, _ := svc.Issue(context.Background(), 42)

	// Infrastructure failure during resolution must not surface to the
	// request -- it degrades to anonymous.
	if user := svc.CurrentUser(context.Background(), token); user != nil {
		t.Errorf("expected nil user on storage failure, got %+v", user)
	}
}

// --- Signup Tests ---

func TestSignup_Success(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			if user.Email != "alice@example.com" {
				t.Errorf("expected normalized email, got %s", user.Email)
			}
			if user.Role != RoleUser {
				t.Errorf("expected role %q, got %q", RoleUser, user.Role)
			}
			if user.PasswordHash == "" || user.PasswordHash == "secure-password-123" {
				t.Error("expected password to be hashed")
			}
			user.ID = 7
			return nil
		},
	}
	svc, _ := newTestService(t, users, newMemSessionRepo())

	user, token, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice",
		Email:    "  Alice@Example.COM ",
		Password: "secure-password-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.PasswordHash != "" {
		t.Error("expected returned user to have no password hash")
	}

	// Signup logs the new user in: the returned token must verify.
	_, userID, ok := svc.Verify(token)
	if !ok {
		t.Fatal("expected signup token to verify")
	}
	if userID != 7 {
		t.Errorf("expected token for user 7, got %d", userID)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	users := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
	}
	svc, _ := newTestService(t, users, newMemSessionRepo())

	_, _, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice",
		Email:    "taken@example.com",
		Password: "secure-password-123",
	})
	assertAppError(t, err, 409)
}

func TestSignup_DuplicateRaceMapsToConflict(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			// The UNIQUE constraint fired after EmailExists said no.
			return apperror.NewConflict("an account with this email already exists")
		},
	}
	svc, _ := newTestService(t, users, newMemSessionRepo())

	_, _, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice",
		Email:    "raced@example.com",
		Password: "secure-password-123",
	})
	assertAppError(t, err, 409)
}

func TestSignup_InvalidatesUserAndAnalyticsCaches(t *testing.T) {
	svc, mr := newTestService(t, &mockUserRepo{}, newMemSessionRepo())

	// Pre-populate cached entries under the tags signup must evict, plus one
	// it must not touch.
	ctx := context.Background()
	seed := func(key, tag string) {
		_, err := svc.cache.Get(ctx, key, []string{tag}, time.Minute,
			func(ctx context.Context) ([]byte, error) { return []byte("cached"), nil })
		if err != nil {
			t.Fatalf("seeding cache: %v", err)
		}
	}
	seed("users:all", cache.TagUsers)
	seed("analytics:summary", cache.TagAnalytics)
	seed("posts:all", cache.TagPosts)

	_, _, err := svc.Signup(ctx, SignupInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secure-password-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists("cache:users:all") {
		t.Error("expected users listing to be evicted on signup")
	}
	if mr.Exists("cache:analytics:summary") {
		t.Error("expected analytics summary to be evicted on signup")
	}
	if !mr.Exists("cache:posts:all") {
		t.Error("expected posts listing to survive signup")
	}
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	hash, err := HashPassword("secure-password-123")
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return activeUser(hash), nil
		},
	}
	svc, _ := newTestService(t, users, newMemSessionRepo())

	user, token, err := svc.Login(context.Background(), LoginInput{
		Email:    "Alice@Example.com",
		Password: "secure-password-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.PasswordHash != "" {
		t.Error("expected returned user to have no password hash")
	}
	if _, _, ok := svc.Verify(token); !ok {
		t.Error("expected login token to verify")
	}
}

func TestLogin_GenericRejections(t *testing.T) {
	hash, err := HashPassword("secure-password-123")
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}

	cases := map[string]*mockUserRepo{
		"unknown email": {},
		"wrong password": {
			findByEmailFn: func(ctx context.Context, email string) (*User, error) {
				return activeUser(hash), nil
			},
		},
		"deactivated account": {
			findByEmailFn: func(ctx context.Context, email string) (*User, error) {
				u := activeUser(hash)
				u.IsActive = false
				return u, nil
			},
		},
	}

	for name, users := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService(t, users, newMemSessionRepo())
			_, _, err := svc.Login(context.Background(), LoginInput{
				Email:    "alice@example.com",
				Password: "wrong-password",
			})
			assertAppError(t, err, 401)

			// All three failures must be indistinguishable.
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && !strings.Contains(appErr.Message, "invalid email or password") {
				t.Errorf("expected generic rejection message, got %q", appErr.Message)
			}
		})
	}
}

// --- Password Hashing Tests ---

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secure-password-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "secure-password-123" {
		t.Fatal("expected hash to differ from plaintext")
	}
	if !CheckPassword("secure-password-123", hash) {
		t.Error("expected correct password to verify")
	}
	if CheckPassword("wrong-password", hash) {
		t.Error("expected wrong password to fail verification")
	}
}

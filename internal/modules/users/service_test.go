package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
	"github.com/jcallahan/inkwell/internal/modules/posts"
)

// --- Mock Repository ---

// mockProfileRepo implements ProfileRepository for testing.
type mockProfileRepo struct {
	listActiveFn    func(ctx context.Context) ([]Profile, error)
	findByIDFn      func(ctx context.Context, id int64) (*Profile, error)
	updateProfileFn func(ctx context.Context, id int64, name, bio, avatar *string) error
	setActiveFn     func(ctx context.Context, id int64, active bool) error

	listCalls int
}

func (m *mockProfileRepo) ListActive(ctx context.Context) ([]Profile, error) {
	m.listCalls++
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []Profile{{ID: 1, Name: "Alice"}}, nil
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id int64) (*Profile, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, id int64, name, bio, avatar *string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, name, bio, avatar)
	}
	return nil
}

func (m *mockProfileRepo) SetActive(ctx context.Context, id int64, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return nil
}

// mockPostsProvider implements PostsProvider for testing.
type mockPostsProvider struct {
	listByAuthorFn func(ctx context.Context, authorID int64) ([]posts.Post, error)
}

func (m *mockPostsProvider) ListByAuthor(ctx context.Context, authorID int64) ([]posts.Post, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, authorID)
	}
	return nil, nil
}

// --- Test Helpers ---

// newTestService creates a userService backed by miniredis and the given
// mocks.
func newTestService(t *testing.T, repo ProfileRepository, provider PostsProvider) (*userService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	if provider == nil {
		provider = &mockPostsProvider{}
	}
	return &userService{repo: repo, posts: provider, cache: cache.New(rdb)}, mr
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

func strPtr(s string) *string { return &s }

// --- List Tests ---

func TestList_SecondCallServedFromCache(t *testing.T) {
	repo := &mockProfileRepo{}
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profiles, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.listCalls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.listCalls)
	}
	if len(profiles) != 1 || profiles[0].Name != "Alice" {
		t.Errorf("expected cached listing, got %+v", profiles)
	}
}

// --- GetByID Tests ---

func TestGetByID_CombinesProfileAndPosts(t *testing.T) {
	repo := &mockProfileRepo{
		findByIDFn: func(ctx context.Context, id int64) (*Profile, error) {
			return &Profile{ID: id, Name: "Alice", PostsCount: 1}, nil
		},
	}
	provider := &mockPostsProvider{
		listByAuthorFn: func(ctx context.Context, authorID int64) ([]posts.Post, error) {
			return []posts.Post{{ID: 3, AuthorID: authorID, Title: "First"}}, nil
		},
	}
	svc, _ := newTestService(t, repo, provider)

	detail, err := svc.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Name != "Alice" {
		t.Errorf("expected profile, got %+v", detail.Profile)
	}
	if len(detail.Posts) != 1 || detail.Posts[0].ID != 3 {
		t.Errorf("expected embedded posts, got %+v", detail.Posts)
	}
}

func TestGetByID_MissingUserIs404(t *testing.T) {
	svc, _ := newTestService(t, &mockProfileRepo{}, nil)

	_, err := svc.GetByID(context.Background(), 99)
	assertAppError(t, err, 404)
}

// --- UpdateProfile Tests ---

func TestUpdateProfile_Success(t *testing.T) {
	var gotName, gotBio *string
	repo := &mockProfileRepo{
		updateProfileFn: func(ctx context.Context, id int64, name, bio, avatar *string) error {
			gotName, gotBio = name, bio
			return nil
		},
		findByIDFn: func(ctx context.Context, id int64) (*Profile, error) {
			return &Profile{ID: id, Name: "Alice B"}, nil
		},
	}
	svc, _ := newTestService(t, repo, nil)

	profile, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileRequest{
		Name: strPtr("  Alice B  "),
		Bio:  strPtr(`<p>hi</p><script>alert("xss")</script>`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName == nil || *gotName != "Alice B" {
		t.Errorf("expected trimmed name, got %v", gotName)
	}
	if gotBio == nil || *gotBio != "<p>hi</p>" {
		t.Errorf("expected sanitized bio, got %v", gotBio)
	}
	if profile.Name != "Alice B" {
		t.Errorf("expected reloaded profile, got %+v", profile)
	}
}

func TestUpdateProfile_ShortNameIs400(t *testing.T) {
	svc, _ := newTestService(t, &mockProfileRepo{}, nil)

	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileRequest{
		Name: strPtr(" A "),
	})
	assertAppError(t, err, 400)
}

func TestUpdateProfile_MissingUserIs404(t *testing.T) {
	repo := &mockProfileRepo{
		updateProfileFn: func(ctx context.Context, id int64, name, bio, avatar *string) error {
			return apperror.NewNotFound("user not found")
		},
	}
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.UpdateProfile(context.Background(), 99, UpdateProfileRequest{
		Name: strPtr("Alice"),
	})
	assertAppError(t, err, 404)
}

func TestUpdateProfile_InvalidatesUserCaches(t *testing.T) {
	repo := &mockProfileRepo{
		findByIDFn: func(ctx context.Context, id int64) (*Profile, error) {
			return &Profile{ID: id, Name: "Alice"}, nil
		},
	}
	svc, mr := newTestService(t, repo, nil)
	ctx := context.Background()

	// Warm the caches the update must evict, plus one it must not.
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("warming list cache: %v", err)
	}
	if _, err := svc.GetByID(ctx, 1); err != nil {
		t.Fatalf("warming detail cache: %v", err)
	}
	if _, err := svc.cache.Get(ctx, "posts:all", []string{cache.TagPosts}, time.Minute,
		func(ctx context.Context) ([]byte, error) { return []byte("cached"), nil }); err != nil {
		t.Fatalf("warming posts cache: %v", err)
	}

	_, err := svc.UpdateProfile(ctx, 1, UpdateProfileRequest{Name: strPtr("Alice B")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists("cache:users:all") {
		t.Error("expected user listing to be evicted on profile update")
	}
	if mr.Exists("cache:users:id:1") {
		t.Error("expected user detail to be evicted on profile update")
	}
	if !mr.Exists("cache:posts:all") {
		t.Error("expected post listing to survive a profile update")
	}
}

// --- SetActive Tests ---

func TestSetActive_Success(t *testing.T) {
	var gotActive bool
	repo := &mockProfileRepo{
		setActiveFn: func(ctx context.Context, id int64, active bool) error {
			gotActive = active
			return nil
		},
	}
	svc, _ := newTestService(t, repo, nil)

	if err := svc.SetActive(context.Background(), 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotActive {
		t.Error("expected deactivation to be passed through")
	}
}

func TestSetActive_MissingUserIs404(t *testing.T) {
	repo := &mockProfileRepo{
		setActiveFn: func(ctx context.Context, id int64, active bool) error {
			return apperror.NewNotFound("user not found")
		},
	}
	svc, _ := newTestService(t, repo, nil)

	err := svc.SetActive(context.Background(), 99, false)
	assertAppError(t, err, 404)
}

func TestSetActive_InvalidatesUserAndAnalyticsCaches(t *testing.T) {
	svc, mr := newTestService(t, &mockProfileRepo{}, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("warming list cache: %v", err)
	}
	if _, err := svc.cache.Get(ctx, "analytics:summary", []string{cache.TagAnalytics}, time.Minute,
		func(ctx context.Context) ([]byte, error) { return []byte("cached"), nil }); err != nil {
		t.Fatalf("warming analytics cache: %v", err)
	}

	if err := svc.SetActive(ctx, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists("cache:users:all") {
		t.Error("expected user listing to be evicted on activation change")
	}
	if mr.Exists("cache:analytics:summary") {
		t.Error("expected analytics summary to be evicted on activation change")
	}
}

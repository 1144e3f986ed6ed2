package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
)

// --- Mock Repository ---

// mockAnalyticsRepo implements AnalyticsRepository for testing.
type mockAnalyticsRepo struct {
	summaryFn        func(ctx context.Context) (*Summary, error)
	recentActivityFn func(ctx context.Context, limit int) ([]ActivityEvent, error)
	sessionCountFn   func(ctx context.Context) (int, error)

	summaryCalls int
}

func (m *mockAnalyticsRepo) Summary(ctx context.Context) (*Summary, error) {
	m.summaryCalls++
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return &Summary{TotalUsers: 3, TotalPosts: 5, TotalComments: 7, TotalViews: 100}, nil
}

func (m *mockAnalyticsRepo) RecentActivity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	if m.recentActivityFn != nil {
		return m.recentActivityFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockAnalyticsRepo) SessionCount(ctx context.Context) (int, error) {
	if m.sessionCountFn != nil {
		return m.sessionCountFn(ctx)
	}
	return 2, nil
}

// --- Test Helpers ---

// newTestService creates an analyticsService backed by miniredis and the
// given mock repository.
func newTestService(t *testing.T, repo AnalyticsRepository) (*analyticsService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &analyticsService{repo: repo, cache: cache.New(rdb)}, mr
}

// --- Summary Tests ---

func TestSummary_SecondCallServedFromCache(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.summaryCalls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.summaryCalls)
	}
	if summary.TotalPosts != 5 || summary.TotalViews != 100 {
		t.Errorf("unexpected cached summary: %+v", summary)
	}
}

func TestSummary_RecomputedAfterAnalyticsInvalidation(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A write path (signup, post create, ...) invalidates the analytics tag.
	if err := svc.cache.Invalidate(ctx, cache.TagAnalytics); err != nil {
		t.Fatalf("invalidating: %v", err)
	}

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.summaryCalls != 2 {
		t.Errorf("expected recompute after invalidation, got %d calls", repo.summaryCalls)
	}
}

func TestSummary_RepositoryErrorIsInternal(t *testing.T) {
	repo := &mockAnalyticsRepo{
		summaryFn: func(ctx context.Context) (*Summary, error) {
			return nil, errors.New("db connection lost")
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Summary(context.Background())
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != 500 {
		t.Errorf("expected internal error, got %v", err)
	}
}

// --- Activity / Admin Stats Tests ---

func TestRecentActivity_PassesLimit(t *testing.T) {
	repo := &mockAnalyticsRepo{
		recentActivityFn: func(ctx context.Context, limit int) ([]ActivityEvent, error) {
			if limit != activityLimit {
				t.Errorf("expected limit %d, got %d", activityLimit, limit)
			}
			return []ActivityEvent{{Type: EventPost, ActorID: 1}}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	events, err := svc.RecentActivity(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventPost {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestAdminStats_CombinesTotalsAndSessions(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc, _ := newTestService(t, repo)

	stats, err := svc.AdminStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalUsers != 3 || stats.ActiveSessions != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAdminStats_IsNotCached(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.AdminStats(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AdminStats(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.summaryCalls != 2 {
		t.Errorf("expected live totals on every admin call, got %d calls", repo.summaryCalls)
	}
}

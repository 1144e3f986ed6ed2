package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
)

// summaryTTL bounds how stale the cached totals may get when no write has
// invalidated them; writes evict the analytics tag well before this fires.
const summaryTTL = 15 * time.Minute

// activityLimit is how many events the recent-activity feed returns.
const activityLimit = 10

// AnalyticsService defines the business logic contract for site statistics.
type AnalyticsService interface {
	Summary(ctx context.Context) (*Summary, error)
	RecentActivity(ctx context.Context) ([]ActivityEvent, error)
	AdminStats(ctx context.Context) (*AdminStats, error)
}

// analyticsService implements AnalyticsService with a cached summary and
// uncached activity feed.
type analyticsService struct {
	repo  AnalyticsRepository
	cache *cache.Cache
}

// NewAnalyticsService creates a new analytics service with the given
// dependencies.
func NewAnalyticsService(repo AnalyticsRepository, c *cache.Cache) AnalyticsService {
	return &analyticsService{repo: repo, cache: c}
}

// Summary returns the site totals, served from the cache under the
// analytics tag. Signups, activation changes, posts and comments all evict
// this entry.
func (s *analyticsService) Summary(ctx context.Context) (*Summary, error) {
	summary, err := cache.Fetch(ctx, s.cache, "analytics:summary", []string{cache.TagAnalytics},
		summaryTTL, s.repo.Summary)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("computing site totals: %w", err))
	}
	return summary, nil
}

// RecentActivity returns the latest events. Always fresh -- the feed is
// cheap to compute and staleness is more visible here than anywhere else.
func (s *analyticsService) RecentActivity(ctx context.Context) ([]ActivityEvent, error) {
	events, err := s.repo.RecentActivity(ctx, activityLimit)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading recent activity: %w", err))
	}
	return events, nil
}

// AdminStats returns the public totals plus the live session count. Not
// cached: admins expect current numbers.
func (s *analyticsService) AdminStats(ctx context.Context) (*AdminStats, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("computing admin totals: %w", err))
	}

	sessions, err := s.repo.SessionCount(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("counting sessions: %w", err))
	}

	return &AdminStats{Summary: *summary, ActiveSessions: sessions}, nil
}

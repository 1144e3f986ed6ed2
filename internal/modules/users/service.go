package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jcallahan/inkwell/internal/apperror"
	"github.com/jcallahan/inkwell/internal/cache"
	"github.com/jcallahan/inkwell/internal/modules/posts"
	"github.com/jcallahan/inkwell/internal/sanitize"
)

// Cache TTLs for the read queries owned by this module. The full directory
// changes rarely and gets the longer window.
const (
	listTTL   = 10 * time.Minute
	detailTTL = 5 * time.Minute
)

// PostsProvider is the slice of the posts service this module needs: the
// per-author listing embedded in user detail pages. Satisfied by
// posts.PostService.
type PostsProvider interface {
	ListByAuthor(ctx context.Context, authorID int64) ([]posts.Post, error)
}

// UserService defines the business logic contract for the user directory
// and profile management.
type UserService interface {
	List(ctx context.Context) ([]Profile, error)
	GetByID(ctx context.Context, id int64) (*UserDetail, error)
	UpdateProfile(ctx context.Context, id int64, input UpdateProfileRequest) (*Profile, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// userService implements UserService with cached reads and tag-invalidating
// writes.
type userService struct {
	repo  ProfileRepository
	posts PostsProvider
	cache *cache.Cache
}

// NewUserService creates a new user service with the given dependencies.
func NewUserService(repo ProfileRepository, postsProvider PostsProvider, c *cache.Cache) UserService {
	return &userService{repo: repo, posts: postsProvider, cache: c}
}

// List returns all active users, served from the cache under the users tag.
func (s *userService) List(ctx context.Context) ([]Profile, error) {
	profiles, err := cache.Fetch(ctx, s.cache, "users:all", []string{cache.TagUsers}, listTTL,
		s.repo.ListActive)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing users: %w", err))
	}
	return profiles, nil
}

// GetByID returns a user's profile plus their published posts. The profile
// is cached under the users tag; the post listing comes from the posts
// service, which caches it under user-posts/posts -- so a new post evicts
// the post half without touching the profile half.
func (s *userService) GetByID(ctx context.Context, id int64) (*UserDetail, error) {
	key := "users:id:" + strconv.FormatInt(id, 10)

	profile, err := cache.Fetch(ctx, s.cache, key, []string{cache.TagUsers}, detailTTL,
		func(ctx context.Context) (*Profile, error) {
			return s.repo.FindByID(ctx, id)
		})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading user %d: %w", id, err))
	}

	userPosts, err := s.posts.ListByAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	if userPosts == nil {
		userPosts = []posts.Post{}
	}

	return &UserDetail{Profile: *profile, Posts: userPosts}, nil
}

// UpdateProfile applies the given profile changes for the user and returns
// the updated profile. The cached user listings go stale, so the users tag
// is invalidated before the write is reported complete.
func (s *userService) UpdateProfile(ctx context.Context, id int64, input UpdateProfileRequest) (*Profile, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if len(trimmed) < 2 {
			return nil, apperror.NewBadRequest("name must be at least 2 characters")
		}
		if len(trimmed) > 255 {
			return nil, apperror.NewBadRequest("name must be at most 255 characters")
		}
		input.Name = &trimmed
	}
	if input.Bio != nil {
		clean := sanitize.HTML(*input.Bio)
		input.Bio = &clean
	}

	if err := s.repo.UpdateProfile(ctx, id, input.Name, input.Bio, input.Avatar); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("updating profile %d: %w", id, err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagUsers); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("invalidating caches after profile update: %w", err))
	}

	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reloading profile %d: %w", id, err))
	}

	slog.Info("profile updated", slog.Int64("user_id", id))

	return profile, nil
}

// SetActive flips a user's soft-delete flag (admin operation). Both the
// user directory and the analytics totals change, so both tags are
// invalidated.
func (s *userService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewInternal(fmt.Errorf("setting user %d active=%t: %w", id, active, err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagUsers, cache.TagAnalytics); err != nil {
		return apperror.NewInternal(fmt.Errorf("invalidating caches after activation change: %w", err))
	}

	slog.Info("user activation changed",
		slog.Int64("user_id", id),
		slog.Bool("active", active),
	)

	return nil
}

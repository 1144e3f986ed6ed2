package posts

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
	"github.com/jcallahan/inkwell/internal/sanitize"
)

// Cache TTLs for the read queries owned by this module. All post-shaped
// reads share the 5 minute window.
const (
	listTTL   = 5 * time.Minute
	detailTTL = 5 * time.Minute
)

// PostService defines the business logic contract for posts and comments.
type PostService interface {
	List(ctx context.Context) ([]Post, error)
	GetByID(ctx context.Context, id int64) (*PostDetail, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]Post, error)
	Search(ctx context.Context, query string) ([]Post, error)
	Create(ctx context.Context, authorID int64, input CreatePostRequest) (*Post, error)
	Delete(ctx context.Context, id int64) error
	AddComment(ctx context.Context, postID, authorID int64, input CreateCommentRequest) (*Comment, error)
}

// postService implements PostService with cached reads and tag-invalidating
// writes.
type postService struct {
	repo  PostRepository
	cache *cache.Cache
}

// NewPostService creates a new post service with the given dependencies.
func NewPostService(repo PostRepository, c *cache.Cache) PostService {
	return &postService{repo: repo, cache: c}
}

// List returns all published posts, served from the cache under the posts
// tag.
func (s *postService) List(ctx context.Context) ([]Post, error) {
	posts, err := cache.Fetch(ctx, s.cache, "posts:all", []string{cache.TagPosts}, listTTL,
		s.repo.ListPublished)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing posts: %w", err))
	}
	return posts, nil
}

// GetByID returns a single post with its comments, served from the cache
// under the posts tag. A new comment invalidates the whole tag, so the
// embedded comment list can never outlive a write.
func (s *postService) GetByID(ctx context.Context, id int64) (*PostDetail, error) {
	key := "posts:id:" + strconv.FormatInt(id, 10)

	detail, err := cache.Fetch(ctx, s.cache, key, []string{cache.TagPosts}, detailTTL,
		func(ctx context.Context) (*PostDetail, error) {
			post, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			comments, err := s.repo.ListCommentsByPost(ctx, id)
			if err != nil {
				return nil, err
			}
			if comments == nil {
				comments = []Comment{}
			}
			return &PostDetail{Post: *post, Comments: comments}, nil
		})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading post %d: %w", id, err))
	}

	return detail, nil
}

// ListByAuthor returns the published posts of one author. The entry is
// registered under both user-posts and posts so either tag evicts it.
func (s *postService) ListByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	key := "posts:user:" + strconv.FormatInt(authorID, 10)

	posts, err := cache.Fetch(ctx, s.cache, key, []string{cache.TagUserPosts, cache.TagPosts}, listTTL,
		func(ctx context.Context) ([]Post, error) {
			return s.repo.ListByAuthor(ctx, authorID)
		})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing posts by author %d: %w", authorID, err))
	}
	return posts, nil
}

// Search returns published posts matching the query. Search results are
// not cached: the key space is unbounded and hit rates are low.
func (s *postService) Search(ctx context.Context, query string) ([]Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}

	posts, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("searching posts: %w", err))
	}
	return posts, nil
}

// Create persists a new post for the given author. The content is sanitized
// before storage. Stale caches (post listings, per-author listings, the
// analytics totals) are invalidated before the write is reported complete.
func (s *postService) Create(ctx context.Context, authorID int64, input CreatePostRequest) (*Post, error) {
	title := strings.TrimSpace(input.Title)
	content := sanitize.HTML(strings.TrimSpace(input.Content))

	if title == "" {
		return nil, apperror.NewBadRequest("title is required")
	}
	if len(title) > 255 {
		return nil, apperror.NewBadRequest("title must be at most 255 characters")
	}
	if content == "" {
		return nil, apperror.NewBadRequest("content is required")
	}

	now := time.Now().UTC()
	post := &Post{
		Title:       title,
		Content:     content,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsPublished: true,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating post: %w", err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagPosts, cache.TagUserPosts, cache.TagAnalytics); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("invalidating caches after post create: %w", err))
	}

	slog.Info("post created",
		slog.Int64("post_id", post.ID),
		slog.Int64("author_id", authorID),
	)

	return post, nil
}

// Delete unpublishes a post (soft delete) and invalidates every cache that
// could still list it.
func (s *postService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Unpublish(ctx, id); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewInternal(fmt.Errorf("deleting post %d: %w", id, err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagPosts, cache.TagUserPosts, cache.TagAnalytics); err != nil {
		return apperror.NewInternal(fmt.Errorf("invalidating caches after post delete: %w", err))
	}

	slog.Info("post deleted", slog.Int64("post_id", id))

	return nil
}

// AddComment persists a sanitized comment on a published post. The post
// detail cache embeds comments, so the posts tag is invalidated; the
// analytics totals count comments, so that tag goes too.
func (s *postService) AddComment(ctx context.Context, postID, authorID int64, input CreateCommentRequest) (*Comment, error) {
	content := sanitize.HTML(strings.TrimSpace(input.Content))
	if content == "" {
		return nil, apperror.NewBadRequest("content is required")
	}

	// Commenting on a missing or unpublished post is a 404, not an FK error.
	if _, err := s.repo.FindByID(ctx, postID); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading post %d: %w", postID, err))
	}

	comment := &Comment{
		Content:   content,
		PostID:    postID,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating comment: %w", err))
	}

	if err := s.cache.Invalidate(ctx, cache.TagPosts, cache.TagAnalytics); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("invalidating caches after comment create: %w", err))
	}

	slog.Info("comment created",
		slog.Int64("comment_id", comment.ID),
		slog.Int64("post_id", postID),
		slog.Int64("author_id", authorID),
	)

	return comment, nil
}

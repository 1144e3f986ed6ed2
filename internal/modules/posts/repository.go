package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcallahan/inkwell/internal/apperror"
)

// PostRepository defines the data access contract for posts and comments.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type PostRepository interface {
	ListPublished(ctx context.Context) ([]Post, error)
	FindByID(ctx context.Context, id int64) (*Post, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]Post, error)
	Search(ctx context.Context, query string) ([]Post, error)
	Create(ctx context.Context, post *Post) error
	Unpublish(ctx context.Context, id int64) error

	ListCommentsByPost(ctx context.Context, postID int64) ([]Comment, error)
	CreateComment(ctx context.Context, comment *Comment) error
}

// postRepository implements PostRepository with hand-written MariaDB queries.
type postRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new post repository backed by the given DB pool.
func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

// postColumns is the shared SELECT list for post queries with the joined
// author summary.
const postColumns = `p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
	       p.likes, p.views, p.is_published,
	       u.id, u.name, u.email, u.avatar`

// ListPublished returns all published posts with their author summaries,
// newest first.
func (r *postRepository) ListPublished(ctx context.Context) ([]Post, error) {
	query := `SELECT ` + postColumns + `
	          FROM posts p
	          JOIN users u ON u.id = p.author_id
	          WHERE p.is_published = TRUE
	          ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// FindByID retrieves a single published post with its author summary.
// Returns apperror.NotFound when the post is missing or unpublished.
func (r *postRepository) FindByID(ctx context.Context, id int64) (*Post, error) {
	query := `SELECT ` + postColumns + `
	          FROM posts p
	          JOIN users u ON u.id = p.author_id
	          WHERE p.id = ? AND p.is_published = TRUE`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("post not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying post by id: %w", err)
	}

	return post, nil
}

// ListByAuthor returns the published posts of a single author, newest first.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	query := `SELECT ` + postColumns + `
	          FROM posts p
	          JOIN users u ON u.id = p.author_id
	          WHERE p.author_id = ? AND p.is_published = TRUE
	          ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, fmt.Errorf("listing posts by author: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Search returns published posts whose title or content matches the query,
// newest first. Plain LIKE matching -- good enough at blog scale; a
// FULLTEXT index is the upgrade path if it ever isn't.
func (r *postRepository) Search(ctx context.Context, query string) ([]Post, error) {
	pattern := "%" + query + "%"
	q := `SELECT ` + postColumns + `
	      FROM posts p
	      JOIN users u ON u.id = p.author_id
	      WHERE p.is_published = TRUE AND (p.title LIKE ? OR p.content LIKE ?)
	      ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Create inserts a new post row and fills in the generated ID.
func (r *postRepository) Create(ctx context.Context, post *Post) error {
	query := `INSERT INTO posts (title, content, author_id, created_at, updated_at, likes, views, is_published)
	          VALUES (?, ?, ?, ?, ?, 0, 0, TRUE)`

	result, err := r.db.ExecContext(ctx, query,
		post.Title,
		post.Content,
		post.AuthorID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted post id: %w", err)
	}
	post.ID = id

	return nil
}

// Unpublish soft-deletes a post by clearing its is_published flag. The row
// (and its comments) stays for audit purposes, mirroring user soft deletes.
func (r *postRepository) Unpublish(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET is_published = FALSE, updated_at = NOW() WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unpublishing post: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("post not found")
	}

	return nil
}

// ListCommentsByPost returns all comments of a post with their author
// summaries, newest first.
func (r *postRepository) ListCommentsByPost(ctx context.Context, postID int64) ([]Comment, error) {
	query := `SELECT c.id, c.content, c.post_id, c.author_id, c.created_at,
	                 u.id, u.name, u.email, u.avatar
	          FROM comments c
	          JOIN users u ON u.id = c.author_id
	          WHERE c.post_id = ?
	          ORDER BY c.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var cm Comment
		author := &Author{}
		if err := rows.Scan(
			&cm.ID, &cm.Content, &cm.PostID, &cm.AuthorID, &cm.CreatedAt,
			&author.ID, &author.Name, &author.Email, &author.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		cm.Author = author
		comments = append(comments, cm)
	}

	return comments, rows.Err()
}

// CreateComment inserts a new comment row and fills in the generated ID.
func (r *postRepository) CreateComment(ctx context.Context, comment *Comment) error {
	query := `INSERT INTO comments (content, post_id, author_id, created_at)
	          VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		comment.Content,
		comment.PostID,
		comment.AuthorID,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted comment id: %w", err)
	}
	comment.ID = id

	return nil
}

// --- Scan helpers ---

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost scans one post row including the joined author columns.
func scanPost(row rowScanner) (*Post, error) {
	post := &Post{}
	author := &Author{}
	err := row.Scan(
		&post.ID, &post.Title, &post.Content, &post.AuthorID,
		&post.CreatedAt, &post.UpdatedAt, &post.Likes, &post.Views, &post.IsPublished,
		&author.ID, &author.Name, &author.Email, &author.Avatar,
	)
	if err != nil {
		return nil, err
	}
	post.Author = author
	return post, nil
}

// scanPosts drains a result set of post rows.
func scanPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

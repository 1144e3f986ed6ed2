// Package posts implements the blog post and comment domain: cached public
// read queries, authenticated writes, and admin moderation. Comments live
// here rather than in their own package because every comment read happens
// through the post detail payload.
package posts

import (
	"time"
)

// Author is the subset of user fields embedded in post and comment payloads.
type Author struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Avatar *string `json:"avatar,omitempty"`
}

// Post represents a published blog post with its author summary.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    int64     `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Likes       int       `json:"likes"`
	Views       int       `json:"views"`
	IsPublished bool      `json:"-"`
	Author      *Author   `json:"author,omitempty"`
}

// Comment represents a reader comment on a post.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	PostID    int64     `json:"post_id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Author    *Author   `json:"author,omitempty"`
}

// PostDetail is the single-post payload: the post plus its comments,
// newest first.
type PostDetail struct {
	Post
	Comments []Comment `json:"comments"`
}

// --- Request DTOs ---

// CreatePostRequest holds the data submitted to POST /api/posts.
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateCommentRequest holds the data submitted to POST /api/posts/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

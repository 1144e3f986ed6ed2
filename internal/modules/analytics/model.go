// Package analytics implements site-wide aggregate statistics and the
// recent-activity feed, plus the admin stats endpoint.
package analytics

import "time"

// Summary holds the public site totals. Counts cover active users and
// published posts only.
type Summary struct {
	TotalUsers    int   `json:"total_users"`
	TotalPosts    int   `json:"total_posts"`
	TotalComments int   `json:"total_comments"`
	TotalViews    int64 `json:"total_views"`
}

// ActivityEvent is one entry in the recent-activity feed: a new post, a new
// comment, or a user joining.
type ActivityEvent struct {
	Type       string    `json:"type"`
	ActorID    int64     `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	SubjectID  int64     `json:"subject_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Activity event types.
const (
	EventPost    = "post_created"
	EventComment = "comment_created"
	EventJoin    = "user_joined"
)

// AdminStats extends the public summary with operational counters for the
// admin dashboard.
type AdminStats struct {
	Summary
	ActiveSessions int `json:"active_sessions"`
}

package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// AnalyticsRepository defines the data access contract for aggregate
// statistics. Everything here is read-only.
type AnalyticsRepository interface {
	Summary(ctx context.Context) (*Summary, error)
	RecentActivity(ctx context.Context, limit int) ([]ActivityEvent, error)
	SessionCount(ctx context.Context) (int, error)
}

// analyticsRepository implements AnalyticsRepository with hand-written
// MariaDB aggregate queries.
type analyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates a new analytics repository backed by the
// given DB pool.
func NewAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// Summary computes the site totals in a single round trip.
func (r *analyticsRepository) Summary(ctx context.Context) (*Summary, error) {
	query := `SELECT
	            (SELECT COUNT(*) FROM users WHERE is_active = TRUE),
	            (SELECT COUNT(*) FROM posts WHERE is_published = TRUE),
	            (SELECT COUNT(*) FROM comments c
	               JOIN posts p ON p.id = c.post_id
	               WHERE p.is_published = TRUE),
	            (SELECT COALESCE(SUM(views), 0) FROM posts WHERE is_published = TRUE)`

	s := &Summary{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.TotalUsers, &s.TotalPosts, &s.TotalComments, &s.TotalViews,
	)
	if err != nil {
		return nil, fmt.Errorf("querying site totals: %w", err)
	}

	return s, nil
}

// RecentActivity returns the most recent events across posts, comments and
// signups, newest first.
func (r *analyticsRepository) RecentActivity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	query := `SELECT * FROM (
	            SELECT 'post_created' AS type, u.id AS actor_id, u.name AS actor_name,
	                   p.id AS subject_id, p.title AS title, p.created_at AS occurred_at
	            FROM posts p JOIN users u ON u.id = p.author_id
	            WHERE p.is_published = TRUE
	            UNION ALL
	            SELECT 'comment_created', u.id, u.name, c.post_id, p.title, c.created_at
	            FROM comments c
	            JOIN users u ON u.id = c.author_id
	            JOIN posts p ON p.id = c.post_id
	            WHERE p.is_published = TRUE
	            UNION ALL
	            SELECT 'user_joined', u.id, u.name, 0, '', u.joined_at
	            FROM users u
	            WHERE u.is_active = TRUE
	          ) events
	          ORDER BY occurred_at DESC
	          LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent activity: %w", err)
	}
	defer rows.Close()

	var events []ActivityEvent
	for rows.Next() {
		var e ActivityEvent
		if err := rows.Scan(
			&e.Type, &e.ActorID, &e.ActorName, &e.SubjectID, &e.Title, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// SessionCount returns the number of session rows currently persisted,
// including any not yet swept after expiry.
func (r *analyticsRepository) SessionCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

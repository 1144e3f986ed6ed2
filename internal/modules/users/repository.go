package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcallahan/inkwell/internal/apperror"
)

// ProfileRepository defines the data access contract for public user views
// and profile updates. Credential columns are deliberately absent from every
// query here -- reads that need the password hash live in the auth module.
type ProfileRepository interface {
	ListActive(ctx context.Context) ([]Profile, error)
	FindByID(ctx context.Context, id int64) (*Profile, error)
	UpdateProfile(ctx context.Context, id int64, name, bio, avatar *string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// profileRepository implements ProfileRepository with hand-written MariaDB
// queries.
type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository backed by the given
// DB pool.
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// profileColumns is the shared SELECT list for profile queries, including
// the published-post count.
const profileColumns = `u.id, u.name, u.email, u.role, u.bio, u.avatar, u.joined_at,
	       (SELECT COUNT(*) FROM posts p WHERE p.author_id = u.id AND p.is_published = TRUE)`

// ListActive returns every active user, newest members first.
func (r *profileRepository) ListActive(ctx context.Context) ([]Profile, error) {
	query := `SELECT ` + profileColumns + `
	          FROM users u
	          WHERE u.is_active = TRUE
	          ORDER BY u.joined_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Email, &p.Role, &p.Bio, &p.Avatar, &p.JoinedAt, &p.PostsCount,
		); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// FindByID retrieves a single active user's profile.
// Returns apperror.NotFound when the user is missing or deactivated.
func (r *profileRepository) FindByID(ctx context.Context, id int64) (*Profile, error) {
	query := `SELECT ` + profileColumns + `
	          FROM users u
	          WHERE u.id = ? AND u.is_active = TRUE`

	p := &Profile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Email, &p.Role, &p.Bio, &p.Avatar, &p.JoinedAt, &p.PostsCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}

	return p, nil
}

// UpdateProfile updates the given fields (nil means unchanged) and bumps
// updated_at.
func (r *profileRepository) UpdateProfile(ctx context.Context, id int64, name, bio, avatar *string) error {
	query := `UPDATE users SET
	            name = COALESCE(?, name),
	            bio = COALESCE(?, bio),
	            avatar = COALESCE(?, avatar),
	            updated_at = NOW()
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, name, bio, avatar, id)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		// MariaDB reports 0 affected rows for a no-op update too, so check
		// the row actually exists before calling it missing.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking user existence: %w", err)
		}
		if !exists {
			return apperror.NewNotFound("user not found")
		}
	}

	return nil
}

// SetActive flips the soft-delete flag. Users are never hard-deleted.
func (r *profileRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = NOW() WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating is_active: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking user existence: %w", err)
		}
		if !exists {
			return apperror.NewNotFound("user not found")
		}
	}

	return nil
}

// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) exists.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jcallahan/inkwell/internal/config"
	"github.com/jcallahan/inkwell/internal/database"
	"github.com/jcallahan/inkwell/internal/modules/auth"
)

const (
	adminEmail  = "admin@example.com"
	writerEmail = "writer@example.com"
	readerEmail = "reader@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, "migrations"); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx := context.Background()

	var existing int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE email = ?`, adminEmail).Scan(&existing)
	if err == nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("seed check: %v", err)
	}

	hash, err := auth.HashPassword(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	adminID := insertUser(ctx, db, "Site Admin", adminEmail, hash, "admin",
		"Keeps the lights on.")
	writerID := insertUser(ctx, db, "Morgan Reyes", writerEmail, hash, "user",
		"Writes about distributed systems and coffee.")
	readerID := insertUser(ctx, db, "Sam Okafor", readerEmail, hash, "user", "")

	firstPost := insertPost(ctx, db, writerID,
		"Why caches lie to you",
		"<p>Every cache is a bet that the past predicts the future. "+
			"This post walks through the invalidation strategy we landed on "+
			"after the third stale-read incident.</p>")
	insertPost(ctx, db, writerID,
		"Sessions are state, stop pretending otherwise",
		"<p>Stateless tokens sound great until you need to log someone out. "+
			"Here is the hybrid approach: a signed token plus a server-side "+
			"session row you can delete.</p>")
	insertPost(ctx, db, adminID,
		"Welcome to Inkwell",
		"<p>House rules: be kind, cite your sources, and preview before you post.</p>")

	insertComment(ctx, db, firstPost, readerID,
		"The tag-based invalidation section finally made this click for me.")
	insertComment(ctx, db, firstPost, adminID,
		"Pinning this one to the front page.")

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login:  %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Writer login: %s / %s\n", writerEmail, devPassword)
	fmt.Printf("Reader login: %s / %s\n", readerEmail, devPassword)
}

func insertUser(ctx context.Context, db *sql.DB, name, email, hash, role, bio string) int64 {
	var bioVal any
	if bio != "" {
		bioVal = bio
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, bio) VALUES (?, ?, ?, ?, ?)`,
		name, email, hash, role, bioVal)
	if err != nil {
		log.Fatalf("create user %s: %v", email, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func insertPost(ctx context.Context, db *sql.DB, authorID int64, title, content string) int64 {
	result, err := db.ExecContext(ctx,
		`INSERT INTO posts (title, content, author_id, views) VALUES (?, ?, ?, ?)`,
		title, content, authorID, 0)
	if err != nil {
		log.Fatalf("create post %q: %v", title, err)
	}
	id, _ := result.LastInsertId()
	return id
}

func insertComment(ctx context.Context, db *sql.DB, postID, authorID int64, content string) {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO comments (content, post_id, author_id) VALUES (?, ?, ?)`,
		content, postID, authorID); err != nil {
		log.Fatalf("create comment on post %d: %v", postID, err)
	}
}

// Package main is the entry point for the Inkwell server. It loads
// configuration, establishes database connections, wires together all
// modules, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jcallahan/inkwell/internal/app"
	"github.com/jcallahan/inkwell/internal/cache"
	"github.com/jcallahan/inkwell/internal/config"
	"github.com/jcallahan/inkwell/internal/database"
	"github.com/jcallahan/inkwell/internal/modules/analytics"
	"github.com/jcallahan/inkwell/internal/modules/auth"
	"github.com/jcallahan/inkwell/internal/modules/posts"
	"github.com/jcallahan/inkwell/internal/modules/users"
)

// sweepInterval is how often expired session rows are purged. Expired
// sessions are already rejected lazily on use; the sweep just keeps the
// table from accumulating dead rows.
const sweepInterval = time.Hour

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Inkwell",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	// --- Run Migrations ---
	if err := database.RunMigrations(db, "migrations"); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Wire Modules ---
	c := cache.New(rdb)

	userRepo := auth.NewUserRepository(db)
	sessionRepo := auth.NewSessionRepository(db)
	authService := auth.NewAuthService(userRepo, sessionRepo, c, cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	authHandler := auth.NewHandler(authService, cfg.Auth.SessionTTL)

	postRepo := posts.NewPostRepository(db)
	postService := posts.NewPostService(postRepo, c)
	postHandler := posts.NewHandler(postService)

	profileRepo := users.NewProfileRepository(db)
	userService := users.NewUserService(profileRepo, postService, c)
	userHandler := users.NewHandler(userService, postService)

	analyticsRepo := analytics.NewAnalyticsRepository(db)
	analyticsService := analytics.NewAnalyticsService(analyticsRepo, c)
	analyticsHandler := analytics.NewHandler(analyticsService)

	// --- Create Application ---
	application := app.New(cfg, db, rdb)

	application.RegisterRoutes(app.Modules{
		AuthService: authService,
		Auth:        authHandler,
		Posts:       postHandler,
		Users:       userHandler,
		Analytics:   analyticsHandler,
	})

	// --- Background Session Sweep ---
	// Stopped via context on shutdown so the goroutine doesn't outlive the server.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepSessions(sweepCtx, sessionRepo)

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")
		stopSweep()

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// sweepSessions periodically deletes expired session rows. Runs once at
// startup, then on the sweep interval until the context is cancelled.
func sweepSessions(ctx context.Context, sessions auth.SessionRepository) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		n, err := sessions.DeleteExpired(ctx)
		if err != nil {
			slog.Error("session sweep failed", slog.Any("error", err))
		} else if n > 0 {
			slog.Info("swept expired sessions", slog.Int64("deleted", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	level := parseLogLevel(cfg.LogLevel)

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}

// parseLogLevel maps the LOG_LEVEL config string to a slog level.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

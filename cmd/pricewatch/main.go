package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/hieudev/pricewatch/internal/api"
	"github.com/hieudev/pricewatch/internal/config"
	"github.com/hieudev/pricewatch/internal/database"
	"github.com/hieudev/pricewatch/internal/events"
	"github.com/hieudev/pricewatch/internal/jobs"
	"github.com/hieudev/pricewatch/internal/ratelimit"
	"github.com/hieudev/pricewatch/internal/scraper"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Name,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
		MaxConnIdle: cfg.Database.MaxConnIdle,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		logger.Error("failed to init schema", "error", err)
		os.Exit(1)
	}

	// Bootstrap the default admin account when none exists
	if err := db.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	// Initialize event publisher with database (for transactional outbox)
	publisher := events.NewPublisher(db, logger)

	// Initialize Redis client for Relay
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Initialize and start Relay for outbox processing
	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: cfg.Relay.PollInterval,
		BatchSize:    cfg.Relay.BatchSize,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Initialize services
	fetcher := scraper.NewFetcher(cfg.Scraper.Timeout, cfg.Scraper.UserAgent, logger)
	scraperService := scraper.NewService(fetcher, logger)
	limiter := ratelimit.NewJitteredLimiter(cfg.Jobs.MinDelay, cfg.Jobs.MaxDelay)
	jobManager := jobs.NewManager(db, scraperService, publisher, limiter, cfg.Jobs.PollInterval, logger)

	// Start job worker
	go jobManager.StartWorker(ctx)

	// Initialize API handlers
	handlers := api.NewHandlers(db, db, publisher, scraperService, jobManager, logger)
	authHandlers := api.NewAuthHandlers(db, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check outbox status
		pendingCount, _ := relay.GetPendingCount(r.Context())
		deadLetterCount, _ := relay.GetDeadLetterCount(r.Context())

		health := map[string]interface{}{
			"status": "ok",
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// API Routes
	r.Mount("/", api.Routes(handlers, authHandlers))

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

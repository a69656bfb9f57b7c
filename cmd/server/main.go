// Lingua - Conversational Companion Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/lingua-dev/lingua/internal/analysis"
	"github.com/lingua-dev/lingua/internal/api"
	"github.com/lingua-dev/lingua/internal/config"
	"github.com/lingua-dev/lingua/internal/dialogue"
	"github.com/lingua-dev/lingua/internal/illustration"
	"github.com/lingua-dev/lingua/internal/live"
	"github.com/lingua-dev/lingua/internal/middleware"
	"github.com/lingua-dev/lingua/internal/session"
	"github.com/lingua-dev/lingua/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	resolver := session.NewResolver(repo)
	aggregator := analysis.NewAggregator(repo)
	continuity := illustration.NewContinuityStore(cfg.IllustrationMaxSessions, cfg.IllustrationTTL)
	hub := live.NewHub()

	// Dialogue service is optional. Without a key the server still records
	// conversations, serving the fallback reply.
	var dialogueService dialogue.Service
	if cfg.GeminiAPIKey != "" {
		retry := dialogue.DefaultRetryPolicy()
		retry.MaxAttempts = cfg.DialogueMaxAttempts
		client, err := dialogue.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiConverseModel, retry)
		if err != nil {
			slog.Warn("Failed to initialize dialogue service, replies will use fallback", "error", err)
		} else {
			dialogueService = client
			slog.Info("Dialogue service initialized", "model", cfg.GeminiConverseModel)
		}
	} else {
		slog.Info("Dialogue disabled (GEMINI_API_KEY not set), replies will use fallback")
	}

	// Initialize handlers.
	handler := api.NewHandler(repo, resolver, dialogueService, aggregator, continuity, hub, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	var allowedOrigins []string
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(allowedOrigins))

	handler.RegisterHealth(r)
	handler.RegisterConverse(r)
	handler.RegisterData(r)
	handler.RegisterLive(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // live WebSocket viewers stay connected indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

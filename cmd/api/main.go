package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "notes-ledger/docs"
	"notes-ledger/internal/aggregator"
	"notes-ledger/internal/auth"
	"notes-ledger/internal/config"
	"notes-ledger/internal/handlers"
	"notes-ledger/internal/logger"
	"notes-ledger/internal/metrics"
	"notes-ledger/internal/middleware"
	"notes-ledger/internal/repository"
	"notes-ledger/internal/scheduler"
	"notes-ledger/internal/service"
)

// @title Notes Ledger API
// @version 1.0
// @description Community notes backend: posts, notes, reviews and consistent rating aggregation

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a participant token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
		"storage", cfg.Storage.Driver,
	)

	// Initialize storage
	st, err := repository.Open(cfg, true)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize services
	agg := aggregator.New(st.Ledger, aggregator.Options{
		CacheEnabled: cfg.Rating.ScoreCache,
		Stripes:      cfg.Rating.LockStripes,
	})
	llmService := service.NewLLMService(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Enabled, cfg.LLM.Timeout)
	postService := service.NewPostService(st.Content, agg)
	ratingService := service.NewRatingService(st.Content, st.Ledger, agg, cfg.Rating)
	noteService := service.NewNoteService(st.Content, postService, llmService, service.Personas(cfg.LLM.Personas))

	tokenService, err := auth.NewService(&cfg.Auth)
	if err != nil {
		slog.Error("Failed to initialize token service", "error", err)
		os.Exit(1)
	}

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(agg, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(tokenService, cfg.Auth.Enabled)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	// Initialize handlers
	postHandler := handlers.NewPostHandler(postService)
	noteHandler := handlers.NewNoteHandler(noteService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	healthHandler := handlers.NewHealthHandler(st.HealthCheck, cfg.App.Version, cfg.Storage.Driver, agg.CacheEnabled())

	// Setup router
	mux := http.NewServeMux()

	// Posts
	mux.HandleFunc("POST /posts", postHandler.CreatePost)
	mux.HandleFunc("GET /posts", postHandler.ListPosts)
	mux.HandleFunc("GET /posts/{id}", postHandler.GetPost)

	// Notes and reviews
	mux.HandleFunc("POST /posts/{id}/notes", noteHandler.CreateNote)
	mux.HandleFunc("POST /posts/{id}/reviews", noteHandler.CreateReview)
	mux.HandleFunc("POST /posts/{id}/notes/generate", noteHandler.GenerateNotes)
	mux.HandleFunc("POST /generate/content", noteHandler.GenerateContent)

	// Ratings
	mux.HandleFunc("GET /ratings", ratingHandler.GetScore)
	mux.Handle("POST /ratings", authMw.Require(http.HandlerFunc(ratingHandler.SubmitRating)))
	mux.HandleFunc("GET /notes/{id}/ratings", ratingHandler.GetHistory)

	// Operations
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.RequestID(
		middleware.LoggingMiddleware(
			middleware.SecurityHeaders(
				corsMw.Handler(
					rateLimiter.Limit(
						middleware.Metrics(mux),
					),
				),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
	}

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := getContext(30 * time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nordveil/sitechat/internal/config"
	"github.com/nordveil/sitechat/internal/db"
	"github.com/nordveil/sitechat/internal/handler"
	mw "github.com/nordveil/sitechat/internal/middleware"
	"github.com/nordveil/sitechat/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to the chunk store with retry
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run startup checks (extension + crawler tables)
	if err := db.StartupChecks(ctx, pool); err != nil {
		slog.Error("startup checks failed", "error", err)
		os.Exit(1)
	}

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiryHours)
	embedSvc := service.NewEmbedService(cfg.EmbedEndpoint)
	retrievalSvc := service.NewRetrievalService(pool)
	llmSvc := service.NewLLMService(cfg.LLMModel, cfg.AnthropicAPIKey, cfg.LLMMaxTokens)
	stats := service.NewStats()
	limiter := service.NewWindowLimiter(cfg.RateLimitPerMinute, time.Minute)

	// Initialize handlers
	chatHandler := handler.NewChatHandler(cfg, embedSvc, retrievalSvc, llmSvc, stats)
	authHandler := handler.NewAuthHandler(authSvc, cfg.AdminPasswordHash)
	adminHandler := handler.NewAdminHandler(stats)

	// Build router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","error":"%s"}`, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	// Chat endpoint — public, rate limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit(limiter))
		r.Post("/v1/chat", chatHandler.Handle)
	})

	// Admin endpoints
	r.Post("/v1/admin/login", authHandler.Login)
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdmin(authSvc))
		r.Get("/v1/admin/stats", adminHandler.Stats)
	})

	// Serve the chat widget (static files, if the directory exists)
	webDir := cfg.WebDir
	if info, err := os.Stat(webDir); err == nil && info.IsDir() {
		slog.Info("serving web UI", "dir", webDir)
		fs := http.FileServer(http.Dir(webDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				http.ServeFile(w, r, webDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
	} else {
		slog.Info("web UI not available", "dir", webDir, "reason", "directory not found")
	}

	slog.Info("pipeline configuration",
		"context_token_ceiling", cfg.ContextTokenCeiling,
		"history_token_ceiling", cfg.HistoryTokenCeiling,
		"chars_per_token", cfg.CharsPerToken,
		"search_count", cfg.SearchCount,
		"search_threshold", cfg.SearchThreshold,
		"rate_limit_per_minute", cfg.RateLimitPerMinute,
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down server...")

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(cancelCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

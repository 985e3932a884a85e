// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"pipecrm/internal/cache"
	"pipecrm/internal/config"
	"pipecrm/internal/handler"
	"pipecrm/internal/logging"
	"pipecrm/internal/middleware"
	"pipecrm/internal/perm"
	"pipecrm/internal/remote"
	"pipecrm/internal/scheduler"
	"pipecrm/internal/service"
	"pipecrm/internal/session"
	"pipecrm/internal/state"
	"pipecrm/internal/store"
	"pipecrm/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "pipecrm - Sales pipeline CRM\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_DB_PATH          SQLite database path (default: ./data/pipecrm.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_BACKEND          Entity backing mode: local|remote (default: local)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_REMOTE_URL       Records store URL (required for remote backend)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_REMOTE_TOKEN     Records store service token\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPECRM_REDIS_URL        Redis URL for distributed caching (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("pipecrm %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting pipecrm",
		"version", versionInfo.Version,
		"commit", versionInfo.GitCommit,
		"env", cfg.Env,
		"backend", cfg.Backend,
	)

	// Initialize database
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := store.Seed(context.Background(), db); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	slog.Info("database ready")

	// Re-create the logger with Event Log integration now that DB is ready
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	// Session manager
	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Collection cache: Redis when configured, in-memory otherwise
	cacheCfg := cache.DefaultConfig()
	cacheCfg.DefaultTTL = time.Duration(cfg.CacheTTL) * time.Second
	cacheCfg.MaxSize = cfg.CacheMaxSize
	if cfg.UseRedisCache() {
		cacheCfg.Type = "redis"
		cacheCfg.RedisURL = cfg.RedisURL
		cacheCfg.Prefix = cfg.CachePrefix
	}
	entityCache, err := cache.New(cacheCfg)
	if err != nil {
		slog.Warn("cache backend unavailable, using memory fallback", "error", err)
		entityCache, _ = cache.New(cache.DefaultConfig())
	}
	defer func() {
		_ = entityCache.Close()
	}()
	collections := cache.NewCollections(entityCache, cacheCfg.DefaultTTL)
	slog.Info("cache initialized", "backend", cacheCfg.Type, "ttl", cacheCfg.DefaultTTL)

	// Remote records client (remote backend only)
	var remoteClient *remote.Client
	if cfg.UseRemote() {
		remoteClient = remote.NewClient(cfg.RemoteURL, cfg.RemoteToken, nil)
		slog.Info("remote records store configured", "url", cfg.RemoteURL, "cascades", cfg.RemoteCascades)
	}

	// Entity state manager
	stateOpts := state.Options{DB: db, RemoteCascades: cfg.RemoteCascades}
	if remoteClient != nil {
		stateOpts.Backend = remoteClient
	}
	stateManager := state.NewManager(stateOpts)
	stateManager.Load(context.Background())
	if msg := stateManager.LastError(); msg != "" {
		slog.Warn("initial collection load incomplete", "error", msg)
	}

	permEngine := perm.NewEngine(db)
	eventService := service.NewEventService(db)

	// Login protection: IP rate limiting plus account lockout
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	slog.Info("login protection initialized")

	h := handler.NewHandler(handler.Options{
		State:        stateManager,
		Perm:         permEngine,
		Sessions:     sessionManager,
		Events:       eventService,
		Collections:  collections,
		Remote:       remoteClient,
		DB:           db,
		Protection:   loginProtection,
		LoginLimiter: loginProtection.Middleware(),
		Version:      versionInfo.Version,
	})

	// Background jobs: remote resync and event log retention
	jobs, err := scheduler.New(scheduler.Options{
		State:          stateManager,
		Events:         eventService,
		Collections:    collections,
		Logger:         logger,
		Resync:         cfg.UseRemote(),
		ResyncSpec:     cfg.ResyncInterval,
		EventRetention: time.Duration(cfg.EventRetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("configuring scheduler: %w", err)
	}
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer jobs.Stop()

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RequestPath)

	apiRateLimiter := middleware.NewGlobalRateLimiter(100, 200)
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(apiRateLimiter.Middleware())
		api.Use(sessionManager.LoadAndSave)
		api.Use(middleware.LoadUser(sessionManager, db))
		h.Routes(api)
	})
	slog.Info("REST API v1 mounted at /api/v1")

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

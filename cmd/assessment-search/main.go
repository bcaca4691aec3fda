package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/terra-clan/assessment-search/internal/api"
	"github.com/terra-clan/assessment-search/internal/cleanup"
	"github.com/terra-clan/assessment-search/internal/config"
	"github.com/terra-clan/assessment-search/internal/logger"
	"github.com/terra-clan/assessment-search/internal/metrics"
	"github.com/terra-clan/assessment-search/internal/search"
	"github.com/terra-clan/assessment-search/internal/session"
	"github.com/terra-clan/assessment-search/internal/storage"
	"github.com/terra-clan/assessment-search/internal/templates"
	"github.com/terra-clan/assessment-search/migrations"
	"github.com/terra-clan/assessment-search/pkg/client"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	slog.SetDefault(logger.New(cfg.Log, os.Stdout))

	slog.Info("starting assessment-search",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"search_endpoint", cfg.Search.Endpoint,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	checks := make(map[string]api.HealthCheck)

	// Search log is optional
	var repo storage.Repository = storage.NopRepository{}
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}

		var schema fs.FS = migrations.FS
		if cfg.Database.MigrationsDir != "" {
			schema = os.DirFS(cfg.Database.MigrationsDir)
		}

		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := pg.Migrate(initCtx, schema); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		repo = pg
		checks["postgres"] = pg.Ping
		slog.Info("database connected successfully")
	} else {
		slog.Info("search log disabled, no database configured")
	}

	// Session snapshots are optional
	var store session.Store
	var redisStore *session.RedisStore
	if cfg.Redis.Address != "" {
		redisStore, err = session.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SnapshotTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = redisStore
		checks["redis"] = redisStore.HealthCheck
		slog.Info("redis connected successfully")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	searchMetrics := metrics.NewSearchMetrics(reg)

	// Upstream search client
	var clientOpts []client.Option
	if cfg.Search.Timeout > 0 {
		clientOpts = append(clientOpts, client.WithTimeout(cfg.Search.Timeout))
	}
	searchClient := client.NewClient(cfg.Search.Endpoint, cfg.Search.Token, clientOpts...)

	// One controller per browser session
	registry := session.NewRegistry(func(id string, opts ...search.Option) *search.Controller {
		opts = append(opts,
			search.WithSessionID(id),
			search.WithRecorder(repo),
			search.WithMetrics(searchMetrics),
		)
		return search.NewController(searchClient, opts...)
	}, store)

	// Load templates
	templateLoader, err := templates.NewLoader()
	if err != nil {
		slog.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	if cfg.Templates.Dir != "" {
		if err := templateLoader.LoadFromDir(cfg.Templates.Dir); err != nil {
			slog.Warn("failed to load templates from dir", "dir", cfg.Templates.Dir, "error", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(registry, cfg.Session.CleanupInterval, cfg.Session.IdleTTL)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(ctx, cfg, api.Deps{
		Registry:   registry,
		Templates:  templateLoader,
		Repository: repo,
		Gatherer:   reg,
		Checks:     checks,
	})

	// No WriteTimeout: synchronous API searches wait as long as the upstream takes
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	if err := repo.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("assessment-search stopped")
}

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

	"github.com/attaboy/adrewards/internal/app"
	"github.com/attaboy/adrewards/internal/auth"
	"github.com/attaboy/adrewards/internal/guard"
	"github.com/attaboy/adrewards/internal/handler"
	"github.com/attaboy/adrewards/internal/infra"
	"github.com/attaboy/adrewards/internal/policy"
	"github.com/attaboy/adrewards/internal/repository"
	"github.com/attaboy/adrewards/internal/service"
	"github.com/attaboy/adrewards/internal/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	healthChecks := map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
	}

	// Rate counters: Redis when configured so every instance shares them.
	var counters guard.WindowCounter = guard.NewMemoryWindowCounter(policy.EligibilityWindow)
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		counters = infra.NewRedisWindowCounter(rdb, policy.EligibilityWindow)
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("connected to redis")
	}

	hub := infra.NewWSHub(logger)
	metrics := infra.NewMetrics(hub.ConnectionCount)

	// Providers
	chain, err := app.NewProviderChain(cfg, logger)
	if err != nil {
		return fmt.Errorf("build provider chain: %w", err)
	}
	chain.WithObserver(metrics)
	if err := chain.Initialize(ctx, cfg.AdTestMode); err != nil {
		return fmt.Errorf("initialize ad providers: %w", err)
	}
	logger.Info("ad providers initialized", "order", chain.Providers(), "test_mode", cfg.AdTestMode)

	// Engine
	store := repository.NewStore(pool)
	tracker := session.NewTracker(counters, policy.EligibilityWindow, logger)
	engine := service.NewAdEngine(tracker, chain, store, store, service.EngineConfig{
		Eligibility: cfg.EligibilityConfig(),
		Fraud:       cfg.FraudConfig(),
		Reward:      cfg.RewardConfig(),
		SessionTTL:  cfg.AdSessionTTL,
		ReapEvery:   cfg.AdReaperInterval,
	}, logger).
		WithObserver(metrics).
		WithNotifier(hub)
	engine.StartReaper(ctx)

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTPlayerExpiry, cfg.JWTAdminExpiry)

	r := app.NewRouter(app.RouterDeps{
		Engine:       engine,
		Hub:          hub,
		Metrics:      metrics,
		JWTMgr:       jwtMgr,
		Logger:       logger,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		HealthChecks: healthChecks,
	})

	// A watch request blocks while every provider in the chain gets its turn.
	watchBudget := cfg.WatchBudget()

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: watchBudget + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := chain.Teardown(shutdownCtx); err != nil {
		logger.Warn("ad provider teardown failed", "error", err)
	}
	if n := engine.PendingCount(); n > 0 {
		logger.Error("ad sessions left unpersisted at shutdown", "count", n)
	}

	logger.Info("server stopped gracefully")
	return nil
}

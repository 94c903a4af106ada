package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/adrewards/internal/infra"
	"github.com/attaboy/adrewards/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.OutboxBatchSize <= 0 || cfg.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE and OUTBOX_POLL_INTERVAL must be positive")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	poller := infra.NewOutboxPoller(
		repository.NewOutboxFeed(pool),
		producer,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		logger,
	)

	logger.Info("outbox-relay starting",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
		"kafka_enabled", producer.Enabled(),
	)
	poller.Run(ctx)

	logger.Info("outbox-relay stopped")
	return nil
}

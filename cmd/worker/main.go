package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/inventory-api/internal/config"
	"github.com/jwalitptl/inventory-api/internal/repository/postgres"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging/kafka"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
	"github.com/jwalitptl/inventory-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)

	sender := kafka.NewSender(kafka.SplitBrokers(cfg.Kafka.Brokers))
	defer sender.Close()

	appMetrics := metrics.New("inventory_worker")

	processor := worker.NewOutboxProcessor(outboxRepo, sender, worker.OutboxProcessorConfig{
		PollInterval:   time.Duration(cfg.Outbox.PollIntervalMs) * time.Millisecond,
		BatchSize:      cfg.Outbox.BatchSize,
		MaxInFlight:    cfg.Outbox.MaxInFlight,
		MaxRetries:     cfg.Outbox.MaxRetries,
		BaseRetryDelay: time.Duration(cfg.Outbox.BaseRetryDelayMs) * time.Millisecond,
	}, appLogger, appMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Start(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down outbox worker...")

	cancel()
	<-done
	log.Info().Msg("outbox worker exited properly")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/inventory-api/internal/config"
	"github.com/jwalitptl/inventory-api/internal/consumer"
	"github.com/jwalitptl/inventory-api/internal/repository/postgres"
	eventService "github.com/jwalitptl/inventory-api/internal/service/event"
	inboxService "github.com/jwalitptl/inventory-api/internal/service/inbox"
	inventoryService "github.com/jwalitptl/inventory-api/internal/service/inventory"
	notificationService "github.com/jwalitptl/inventory-api/internal/service/notification"
	reportService "github.com/jwalitptl/inventory-api/internal/service/report"
	"github.com/jwalitptl/inventory-api/pkg/event"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/messaging"
	"github.com/jwalitptl/inventory-api/pkg/messaging/kafka"
	redisSink "github.com/jwalitptl/inventory-api/pkg/messaging/redis"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
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
	inboxRepo := postgres.NewInboxRepository(base)
	stockRepo := postgres.NewStockRepository(base)
	projectionRepo := postgres.NewProjectionRepository(base)
	historyRepo := postgres.NewEventHistoryRepository(base)

	appMetrics := metrics.New("inventory_consumer")

	eventSvc := eventService.NewService(outboxRepo)
	inboxSvc := inboxService.NewService(inboxRepo)
	inventorySvc := inventoryService.NewService(&base, stockRepo, eventSvc, appLogger)
	reportSvc := reportService.NewService(projectionRepo, stockRepo, historyRepo, appLogger)

	notificationSvc := notificationService.NewService(notificationService.SMTPConfig{
		Host:     cfg.Alerts.SMTPHost,
		Port:     cfg.Alerts.SMTPPort,
		Username: cfg.Alerts.SMTPUsername,
		Password: cfg.Alerts.SMTPPassword,
		From:     cfg.Alerts.From,
		To:       cfg.Alerts.To,
	}, appLogger)

	var pushSink messaging.PushSink
	if cfg.Redis.URL != "" {
		pushSink, err = redisSink.NewPushSink(redisSink.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer pushSink.Close()
	}

	inventoryConsumer := consumer.NewInventoryConsumer(&base, inboxSvc, inventorySvc, appMetrics, appLogger)
	reportingConsumer := consumer.NewReportingConsumer(&base, inboxSvc, reportSvc, notificationSvc, pushSink, appMetrics, appLogger)

	brokers := kafka.SplitBrokers(cfg.Kafka.Brokers)
	inventoryGroup := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: brokers,
		GroupID: event.GroupInventoryService,
	}, appLogger)
	defer inventoryGroup.Close()

	reportingGroup := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: brokers,
		GroupID: event.GroupReportingService,
	}, appLogger)
	defer reportingGroup.Close()

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	run := func(c *kafka.Consumer, topic string, handler messaging.Handler) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Run(ctx, topic, handler); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("topic", topic).Msg("consumer stopped")
			}
		}()
	}

	run(inventoryGroup, event.TopicProductCreated, inventoryConsumer.HandleProductCreated)
	run(inventoryGroup, event.TopicProductUpdated, inventoryConsumer.HandleProductUpdated)
	run(inventoryGroup, event.TopicProductDeleted, inventoryConsumer.HandleProductDeleted)
	run(reportingGroup, event.TopicStockUpdated, reportingConsumer.HandleStockUpdated)

	log.Info().Msg("consumers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down consumers...")

	cancel()
	wg.Wait()
	log.Info().Msg("consumers exited properly")
}

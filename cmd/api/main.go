package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/inventory-api/internal/config"
	healthHandler "github.com/jwalitptl/inventory-api/internal/handler/health"
	outboxadminHandler "github.com/jwalitptl/inventory-api/internal/handler/outboxadmin"
	productHandler "github.com/jwalitptl/inventory-api/internal/handler/product"
	prometheusHandler "github.com/jwalitptl/inventory-api/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/inventory-api/internal/handler/report"
	stockHandler "github.com/jwalitptl/inventory-api/internal/handler/stock"
	"github.com/jwalitptl/inventory-api/internal/middleware"
	"github.com/jwalitptl/inventory-api/internal/repository/postgres"
	"github.com/jwalitptl/inventory-api/internal/router"
	eventService "github.com/jwalitptl/inventory-api/internal/service/event"
	inventoryService "github.com/jwalitptl/inventory-api/internal/service/inventory"
	outboxadminService "github.com/jwalitptl/inventory-api/internal/service/outboxadmin"
	productService "github.com/jwalitptl/inventory-api/internal/service/product"
	reportService "github.com/jwalitptl/inventory-api/internal/service/report"
	"github.com/jwalitptl/inventory-api/pkg/logger"
	"github.com/jwalitptl/inventory-api/pkg/metrics"
	"github.com/jwalitptl/inventory-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	if err := validator.RegisterCustomValidations(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	productRepo := postgres.NewProductRepository(base)
	stockRepo := postgres.NewStockRepository(base)
	projectionRepo := postgres.NewProjectionRepository(base)
	historyRepo := postgres.NewEventHistoryRepository(base)

	appMetrics := metrics.New("inventory")

	eventSvc := eventService.NewService(outboxRepo)
	productSvc := productService.NewService(&base, productRepo, eventSvc, appLogger)
	inventorySvc := inventoryService.NewService(&base, stockRepo, eventSvc, appLogger)
	reportSvc := reportService.NewService(projectionRepo, stockRepo, historyRepo, appLogger)
	outboxAdminSvc := outboxadminService.NewService(outboxRepo, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Admin.JWTSecret)
	promH := prometheusHandler.New(appMetrics)

	r := router.NewRouter(
		authMiddleware,
		productHandler.NewHandler(productSvc),
		stockHandler.NewHandler(inventorySvc),
		reportHandler.NewHandler(reportSvc),
		outboxadminHandler.NewHandler(outboxAdminSvc),
		healthHandler.NewHandler(db),
		promH,
		router.Config{RateLimit: 100, RateBurst: 200},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("inventory API started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

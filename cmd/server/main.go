// Package main provides the API server entry point for the price ETL service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/price-etl/internal/api"
	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/ingest"
	"github.com/price-etl/internal/logging"
	"github.com/price-etl/internal/normalize"
	"github.com/price-etl/internal/source"
	"github.com/price-etl/internal/storage"
	"github.com/price-etl/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	// The analytics mirror is optional; skip when not configured
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled() {
		clickhouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to ClickHouse, continuing without analytics")
		} else {
			defer clickhouse.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := clickhouse.EnsureAnalyticsSchema(ctx); err != nil {
				logger.WithError(err).Warn("Failed to prepare analytics schema, continuing without analytics")
				clickhouse = nil
			}
			cancel()
		}
	}

	logger.Info("Database connections established")

	// Initialize repositories
	rawRepo := storage.NewRawRepository(postgres)
	priceRepo := storage.NewPriceRepository(postgres)
	checkpointRepo := storage.NewCheckpointRepository(postgres)
	runRepo := storage.NewRunRepository(postgres)
	ingestStore := storage.NewIngestStore(postgres, rawRepo, priceRepo, checkpointRepo)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	var analyticsRepo *storage.AnalyticsRepository
	if clickhouse != nil {
		analyticsRepo = storage.NewAnalyticsRepository(clickhouse)
	}

	// Initialize source adapters
	sources := buildSources(cfg, logger)
	if len(sources) == 0 {
		logger.Fatal("No sources enabled")
	}

	// Initialize the orchestrator
	orchCfg := &ingest.Config{
		Sources:     sources,
		Normalizer:  normalize.NewRegistry(),
		Checkpoints: checkpointRepo,
		Store:       ingestStore,
		Runs:        runRepo,
		Cache:       cacheService,
		Logger:      logger,
	}
	if analyticsRepo != nil {
		orchCfg.Analytics = analyticsRepo
	}
	orchestrator := ingest.NewOrchestrator(orchCfg)

	// Start the scheduler
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var scheduler *worker.Scheduler
	if cfg.Schedule.Enabled {
		scheduler, err = worker.NewScheduler(&worker.SchedulerConfig{
			Runner:   orchestrator,
			Interval: cfg.Schedule.Interval,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create scheduler")
		}
		if err := scheduler.Start(rootCtx); err != nil {
			logger.WithError(err).Fatal("Failed to start scheduler")
		}
	} else {
		logger.Info("Scheduler disabled, ingestion runs on manual triggers only")
	}

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	deps := &api.Deps{
		Ingest:      orchestrator,
		Prices:      priceRepo,
		Runs:        runRepo,
		Checkpoints: checkpointRepo,
		Cache:       cacheService,
		DB:          postgres,
		Logger:      logger,
	}
	if analyticsRepo != nil {
		deps.Aggregates = analyticsRepo
		deps.AnalyticsPing = analyticsRepo
	}

	server := api.NewServer(serverConfig, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			logger.WithError(err).Error("Scheduler shutdown failed")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// buildSources constructs the enabled source adapters from configuration
func buildSources(cfg *config.Config, logger *logging.Logger) []source.Source {
	var sources []source.Source

	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "coingecko":
			sources = append(sources, source.NewGuardedSource(source.NewCoinGeckoSource(&cfg.Sources.CoinGecko), nil))
		case "coinpaprika":
			sources = append(sources, source.NewGuardedSource(source.NewCoinPaprikaSource(&cfg.Sources.CoinPaprika), nil))
		case "csv":
			if cfg.Sources.CSV.Path == "" {
				logger.Warn("Skipping csv source: no file path configured")
				continue
			}
			sources = append(sources, source.NewCSVSource(&cfg.Sources.CSV))
		default:
			logger.WithField("source", name).Warn("Skipping unknown source")
			continue
		}
		logger.WithField("source", name).Info("Source adapter initialized")
	}

	return sources
}

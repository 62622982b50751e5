// Package main provides a CLI for running one-shot ingestion cycles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/price-etl/internal/config"
	"github.com/price-etl/internal/ingest"
	"github.com/price-etl/internal/logging"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/normalize"
	"github.com/price-etl/internal/source"
	"github.com/price-etl/internal/storage"
	"github.com/price-etl/internal/types"
)

func main() {
	var (
		sourceName = flag.String("source", "", "Run a single source (coingecko, coinpaprika, csv); empty runs all")
		csvPath    = flag.String("csv", "", "Override the CSV file path")
		timeout    = flag.Duration("timeout", 10*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *csvPath != "" {
		cfg.Sources.CSV.Path = *csvPath
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	rawRepo := storage.NewRawRepository(postgres)
	priceRepo := storage.NewPriceRepository(postgres)
	checkpointRepo := storage.NewCheckpointRepository(postgres)
	runRepo := storage.NewRunRepository(postgres)
	ingestStore := storage.NewIngestStore(postgres, rawRepo, priceRepo, checkpointRepo)

	var sources []source.Source
	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "coingecko":
			sources = append(sources, source.NewGuardedSource(source.NewCoinGeckoSource(&cfg.Sources.CoinGecko), nil))
		case "coinpaprika":
			sources = append(sources, source.NewGuardedSource(source.NewCoinPaprikaSource(&cfg.Sources.CoinPaprika), nil))
		case "csv":
			if cfg.Sources.CSV.Path != "" {
				sources = append(sources, source.NewCSVSource(&cfg.Sources.CSV))
			}
		}
	}

	orchestrator := ingest.NewOrchestrator(&ingest.Config{
		Sources:     sources,
		Normalizer:  normalize.NewRegistry(),
		Checkpoints: checkpointRepo,
		Store:       ingestStore,
		Runs:        runRepo,
		Logger:      logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var runs []*models.RunRecord
	if *sourceName != "" {
		run, err := orchestrator.RunSource(ctx, types.SourceID(*sourceName))
		if err != nil && run == nil {
			logger.WithError(err).Fatal("Run could not start")
		}
		runs = []*models.RunRecord{run}
	} else {
		runs = orchestrator.RunAll(ctx)
	}

	failed := false
	for _, run := range runs {
		fmt.Printf("%s  source=%s status=%s fetched=%d normalized=%d rejected=%d duration=%s\n",
			run.RunID, run.Source, run.Status,
			run.RecordsFetched, run.RecordsNormalized, run.RecordsRejected,
			run.Duration(),
		)
		if run.Status == types.RunStatusFailed {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/layoffwatch/internal/app"
	"github.com/timmy/layoffwatch/internal/config"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/repository"
)

func main() {
	// Initialize logger first (with defaults)
	opts := logger.OptionsFromEnv()
	opts.ServiceName = "layoffwatch-ingest"
	appLogger := logger.New(opts)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	sourceName := flag.String("source", "", "Run a single source instead of every enabled one")
	initOnly := flag.Bool("init", false, "Create the database schema and exit")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *initOnly {
		if err := initSchema(ctx, cfg); err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize schema")
		}
		appLogger.Info("Schema initialized")
		return
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	appLogger.WithFields(logger.Fields{
		"source":  *sourceName,
		"sources": len(a.Orchestrator.Registrations()),
	}).Info("Starting ingestion")

	var summary *domain.RunSummary
	if *sourceName != "" {
		summary = domain.NewRunSummary()
		summary.Add(*sourceName, a.Orchestrator.RunAdapter(ctx, *sourceName))
	} else {
		summary = a.Orchestrator.RunAll(ctx)
	}

	printSummary(summary)
	if !summary.Success {
		appLogger.Error("Ingestion finished with failures")
		a.Close()
		logger.Sync()
		os.Exit(1)
	}
	appLogger.Info("Ingestion completed")
}

func initSchema(ctx context.Context, cfg *config.Config) error {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return repository.NewRecordRepository(db).Initialize(ctx)
}

func printSummary(s *domain.RunSummary) {
	for _, name := range s.Order {
		r := s.Results[name]
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
		}
		fmt.Printf("%-24s %-8s found=%d added=%d duplicates=%d rejected=%d duration=%.2fs\n",
			name, status, r.RecordsFound, r.RecordsAdded, r.Duplicates, r.RecordsRejected, r.DurationSeconds)
		for _, e := range r.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
}

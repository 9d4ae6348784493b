package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/layoffwatch/internal/api"
	"github.com/timmy/layoffwatch/internal/app"
	"github.com/timmy/layoffwatch/internal/config"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/service"
)

func main() {
	opts := logger.OptionsFromEnv()
	opts.ServiceName = "layoffwatch-scheduler"
	appLogger := logger.New(opts)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	var srv *http.Server
	if cfg.Server.Port > 0 {
		router := api.SetupRouter(a.Orchestrator, a.Store, a.Metrics.Handler(), appLogger, cfg.Server.Mode)
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}
		go func() {
			appLogger.WithField("port", cfg.Server.Port).Info("Starting admin server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.WithError(err).Error("Admin server stopped")
				stop()
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		runScheduled(ctx, a, cfg, appLogger)
	} else {
		summary := a.Orchestrator.RunAll(ctx)
		appLogger.WithField("success", summary.Success).Info("One-shot run finished")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Admin server forced to shutdown")
		}
	}
	appLogger.Info("Scheduler exited")
}

func runScheduled(ctx context.Context, a *app.App, cfg *config.Config, log *logger.Logger) {
	sched := service.NewScheduler(a.Orchestrator)
	for _, reg := range a.Orchestrator.Registrations() {
		if reg.Interval <= 0 {
			continue
		}
		if err := sched.Schedule(reg.Name, reg.Interval); err != nil {
			log.WithError(err).WithField("source", reg.Name).Warn("Failed to schedule source")
			continue
		}
		log.WithFields(logger.Fields{
			"source":   reg.Name,
			"interval": reg.Interval.String(),
		}).Info("Source scheduled")
	}

	if cfg.Scheduler.RunOnStart {
		sched.RunOnce(ctx)
	}

	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Error("Scheduler stopped")
	}
}

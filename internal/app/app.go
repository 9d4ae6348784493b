// Package app wires configuration into the pipeline components shared by
// the ingest and scheduler commands.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/layoffwatch/internal/archive"
	"github.com/timmy/layoffwatch/internal/browser"
	"github.com/timmy/layoffwatch/internal/config"
	"github.com/timmy/layoffwatch/internal/fetcher"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/metrics"
	"github.com/timmy/layoffwatch/internal/repository"
	"github.com/timmy/layoffwatch/internal/service"
	"github.com/timmy/layoffwatch/internal/source/registry"
	"gorm.io/gorm"
)

// App holds the wired pipeline.
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Store        *repository.RecordRepository
	Fetcher      *fetcher.Fetcher
	Metrics      *metrics.Metrics
	Orchestrator *service.Orchestrator
}

// FetcherConfig maps the fetcher section onto fetcher.Config.
func FetcherConfig(cfg *config.Config) fetcher.Config {
	return fetcher.Config{
		RequestDelay:   cfg.Fetcher.RequestDelay,
		MaxRetries:     cfg.Fetcher.MaxRetries,
		RetryBaseDelay: cfg.Fetcher.RetryBaseDelay,
		Timeout:        cfg.Fetcher.Timeout,
		UserAgent:      cfg.Fetcher.UserAgent,
	}
}

// ProxyConfig maps the proxy section onto fetcher.ProxyConfig.
func ProxyConfig(cfg *config.Config) fetcher.ProxyConfig {
	return fetcher.ProxyConfig{
		Enabled:  cfg.Proxy.Enabled,
		Host:     cfg.Proxy.Host,
		Port:     cfg.Proxy.Port,
		Username: cfg.Proxy.Username,
		Password: cfg.Proxy.Password,
	}
}

var openDB = repository.InitDB

// New opens the database, builds the shared clients and registers every
// enabled adapter. The database is closed again if any later step fails.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	db, err := openDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeDB(db)
		}
	}()

	store := repository.NewRecordRepository(db)
	if cfg.Database.AutoMigrate {
		if err := store.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	proxy := ProxyConfig(cfg)
	f := fetcher.New(FetcherConfig(cfg), proxy)
	logger.CtxInfo(ctx, "Fetcher ready: delay=%s retries=%d proxy=%s", cfg.Fetcher.RequestDelay, cfg.Fetcher.MaxRetries, proxy)

	chrome := browser.NewChrome(browser.Config{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		Timeout:   cfg.Browser.Timeout,
		Settle:    cfg.Browser.Settle,
		UserAgent: cfg.Fetcher.UserAgent,
		Proxy:     proxy,
	}, f)

	m := metrics.New()
	opts := []service.OrchestratorOption{service.WithObserver(m)}
	if cfg.Archive.Enabled {
		arch, err := newArchive(ctx, &cfg.Archive)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithArchive(arch))
	}

	orch := service.NewOrchestrator(store, opts...)
	for _, e := range registry.Build(&cfg.Sources, registry.Deps{HTTP: f, Renderer: chrome}) {
		if err := orch.Register(e.Adapter, e.Registration); err != nil {
			return nil, err
		}
	}

	return &App{
		Config:       cfg,
		DB:           db,
		Store:        store,
		Fetcher:      f,
		Metrics:      m,
		Orchestrator: orch,
	}, nil
}

func newArchive(ctx context.Context, cfg *config.ArchiveConfig) (*archive.Archiver, error) {
	s3Store, err := archive.NewS3Store(ctx, archive.S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
	}
	return archive.New(s3Store, cfg.Prefix), nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return closeDB(a.DB)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

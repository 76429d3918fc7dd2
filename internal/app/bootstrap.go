package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/export"
	"github.com/joseph-ayodele/invoice-ingest/internal/extract"
	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
	"github.com/joseph-ayodele/invoice-ingest/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-ingest/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

// Dependencies is the wired object graph shared by the daemon and the CLI.
type Dependencies struct {
	DB        *repository.DB
	Receipts  repository.ReceiptRepository
	Service   llm.Service
	Processor *pipeline.Processor
	Exporter  *export.Service
	logger    *slog.Logger
}

// OpenStore connects to the configured database, waits for it to answer and
// applies migrations when DB_AUTO_MIGRATE is set.
func OpenStore(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ping := func() error { return repository.HealthCheck(ctx, db, 3*time.Second, logger) }
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 4), ctx)
	notify := func(err error, wait time.Duration) {
		logger.Warn("db.health.retry", "error", err, "wait_ms", wait.Milliseconds())
	}
	if err := backoff.RetryNotify(ping, bo, notify); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("database health: %w", err)
	}

	if cfg.AutoMigrate {
		if err := repository.Migrate(db, logger); err != nil {
			db.Close(logger)
			return nil, err
		}
	}
	return db, nil
}

// NewExtractionService builds the provider named by cfg.Provider.
func NewExtractionService(ctx context.Context, cfg common.ExtractionConfig, logger *slog.Logger) (llm.Service, error) {
	switch cfg.Provider {
	case "gemini":
		temp := cfg.Temperature
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: &temp,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported extraction provider %q", cfg.Provider)
	}
}

// NewProcessor wires the pipeline around an extraction service and a store.
func NewProcessor(cfg *common.Config, svc llm.Service, store repository.ReceiptCreator, logger *slog.Logger) *pipeline.Processor {
	extractor := extract.NewClient(svc,
		extract.WithRetry(cfg.Extraction.MaxAttempts, cfg.Extraction.InitialDelay),
		extract.WithLogger(logger),
	)
	return pipeline.NewProcessor(logger, cfg.Artifacts.Dir, nil, extractor, pipeline.NewCommitter(store, logger))
}

// Bootstrap opens the store and builds everything above it.
func Bootstrap(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	svc, err := NewExtractionService(ctx, cfg.Extraction, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}

	receipts := repository.NewReceiptRepository(db, logger)
	deps := &Dependencies{
		DB:        db,
		Receipts:  receipts,
		Service:   svc,
		Processor: NewProcessor(cfg, svc, receipts, logger),
		Exporter:  export.NewService(receipts, logger),
		logger:    logger,
	}
	logger.Info("bootstrap.ok", "db_driver", db.Name, "provider", svc.Name())
	return deps, nil
}

func (d *Dependencies) Close() {
	if d == nil || d.DB == nil {
		return
	}
	d.DB.Close(d.logger)
}

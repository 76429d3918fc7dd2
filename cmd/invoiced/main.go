package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-ingest/internal/app"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("invoiced exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("invoiced stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	httpSrv := server.NewHTTPServer(server.HTTPConfig{
		Addr:           cfg.Server.HTTPAddr,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, deps.Processor, deps.Receipts, deps.Exporter, logger)
	grpcSrv := server.NewGRPCServer(deps.DB, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpSrv.ListenAndServe(gctx, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return grpcSrv.Serve(gctx, cfg.Server.GRPCAddr, 15*time.Second)
	})
	return g.Wait()
}

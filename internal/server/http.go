package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

// Runner is the pipeline entry point behind the upload route.
type Runner interface {
	Run(ctx context.Context, up pipeline.Upload) (pipeline.Result, error)
}

// Exporter renders the stored receipts as a workbook.
type Exporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}

type HTTPConfig struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// HTTPServer serves the upload, receipt CRUD and export routes.
type HTTPServer struct {
	cfg      HTTPConfig
	runner   Runner
	receipts repository.ReceiptRepository
	exporter Exporter
	logger   *slog.Logger
	srv      *http.Server
}

func NewHTTPServer(cfg HTTPConfig, runner Runner, receipts repository.ReceiptRepository, exporter Exporter, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	s := &HTTPServer{cfg: cfg, runner: runner, receipts: receipts, exporter: exporter, logger: logger}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.upload)
	mux.HandleFunc("GET /api/receipts", s.listReceipts)
	mux.HandleFunc("GET /api/receipts/export.xlsx", s.exportReceipts)
	mux.HandleFunc("GET /api/receipts/{id}", s.getReceipt)
	mux.HandleFunc("PUT /api/receipts/{id}", s.updateReceipt)
	mux.HandleFunc("DELETE /api/receipts/{id}", s.deleteReceipt)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	return requestContext(s.logger, recoverPanics(mux))
}

// ListenAndServe blocks until ctx is done, then drains in-flight requests
// within shutdownTimeout.
func (s *HTTPServer) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", s.cfg.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http.shutdown")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

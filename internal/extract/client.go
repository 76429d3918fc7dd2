package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/entity"
	"github.com/joseph-ayodele/invoice-ingest/internal/llm"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 2 * time.Second
)

// Extractor turns a local artifact into the service's raw answer.
type Extractor interface {
	Extract(ctx context.Context, artifact entity.UploadedArtifact) (string, error)
}

// Client uploads an artifact, asks the service to extract it, and deletes the remote copy.
type Client struct {
	svc          llm.Service
	prompt       string
	maxAttempts  int
	initialDelay time.Duration
	logger       *slog.Logger
	onRetry      func(op string, attempt int, wait time.Duration)
}

type Option func(*Client)

// WithRetry sets the attempt ceiling and the first backoff wait. The wait doubles
// after every transient failure. A zero delay retries immediately; a negative one
// keeps the default.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if initialDelay >= 0 {
			c.initialDelay = initialDelay
		}
	}
}

func WithPrompt(prompt string) Option {
	return func(c *Client) { c.prompt = prompt }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryHook is called before every backoff wait.
func WithRetryHook(fn func(op string, attempt int, wait time.Duration)) Option {
	return func(c *Client) { c.onRetry = fn }
}

func NewClient(svc llm.Service, opts ...Option) *Client {
	c := &Client{
		svc:          svc,
		prompt:       llm.ExtractionPrompt,
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract runs upload then generate, each under its own retry budget.
func (c *Client) Extract(ctx context.Context, artifact entity.UploadedArtifact) (string, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, c.logger)

	remote, err := retry(ctx, c, "upload", func(ctx context.Context) (llm.RemoteFile, error) {
		f, err := os.Open(artifact.Path)
		if err != nil {
			return llm.RemoteFile{}, backoff.Permanent(&common.PermanentServiceError{Op: "upload", Err: fmt.Errorf("open artifact: %w", err)})
		}
		defer func() { _ = f.Close() }()
		return c.svc.Upload(ctx, llm.UploadRequest{
			Reader:      f,
			Size:        artifact.Size,
			MediaType:   artifact.MediaType,
			DisplayName: artifact.DisplayName,
		})
	})
	if err != nil {
		logger.Error("extract.upload.failed", "artifact", artifact.DisplayName, "kind", common.ErrorKind(err), "error", err)
		return "", err
	}
	defer c.deleteRemote(logger, remote)

	text, err := retry(ctx, c, "generate", func(ctx context.Context) (string, error) {
		return c.svc.Generate(ctx, remote, c.prompt)
	})
	if err != nil {
		logger.Error("extract.generate.failed", "artifact", artifact.DisplayName, "kind", common.ErrorKind(err), "error", err)
		return "", err
	}

	logger.Info("extract.ok",
		"provider", c.svc.Name(),
		"artifact", artifact.DisplayName,
		"media_type", artifact.MediaType,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// deleteRemote is best effort and runs even when the caller's context is done.
func (c *Client) deleteRemote(logger *slog.Logger, remote llm.RemoteFile) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.svc.Delete(ctx, remote); err != nil {
		logger.Warn("extract.remote_delete.failed", "file", remote.Name, "error", err)
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.initialDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxAttempts-1)), ctx)
}

// retry runs fn until it succeeds, fails permanently, or the attempt ceiling is hit.
// Only an overloaded (503) signal is retried.
func retry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	logger := common.LoggerFromContext(ctx, c.logger)
	attempts := 0

	operation := func() (T, error) {
		var zero T
		attempts++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, backoff.Permanent(ctxErr)
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return zero, err
		}
		status := statusOf(err)
		if status == http.StatusServiceUnavailable {
			return zero, &common.TransientServiceError{Op: op, Status: status, Attempts: attempts, Err: err}
		}
		return zero, backoff.Permanent(&common.PermanentServiceError{Op: op, Status: status, Err: err})
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("extract.retry",
			"op", op,
			"attempt", attempts,
			"max_attempts", c.maxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if c.onRetry != nil {
			c.onRetry(op, attempts, wait)
		}
	}

	v, err := backoff.RetryNotifyWithData(operation, c.newBackOff(ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return v, fmt.Errorf("%s cancelled after %d attempts: %w", op, attempts, err)
	}
	return v, err
}

func statusOf(err error) int {
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Status
	}
	return 0
}

package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
)

// Runner is the part of pipeline.Processor the queue drives.
type Runner interface {
	Run(ctx context.Context, up pipeline.Upload) (pipeline.Result, error)
}

type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	results chan<- JobResult

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResults delivers a JobResult per job on ch. The queue closes ch after
// Shutdown has drained every worker.
func WithResults(ch chan<- JobResult) Option {
	return func(q *ProcessorQueue) { q.results = ch }
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	start := time.Now()
	logger := q.logger.With("worker_id", workerID, "path", job.Path)
	if job.TraceID != "" {
		logger = logger.With("trace_id", job.TraceID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithLogger(ctx, logger)

	res, err := q.runJob(ctx, job)
	if err != nil {
		logger.Error("queue.job.failed", "kind", common.ErrorKind(err), "committed", res.Committed, "error", err)
	} else {
		logger.Info("queue.job.ok",
			"status", res.Status,
			"committed", res.Committed,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	if q.results != nil {
		q.results <- JobResult{Job: job, Result: res, Err: err, Elapsed: time.Since(start)}
	}
}

func (q *ProcessorQueue) runJob(ctx context.Context, job Job) (pipeline.Result, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("open %s: %w", job.Path, err)
	}
	defer func() { _ = f.Close() }()

	name := job.Name
	if name == "" {
		name = filepath.Base(job.Path)
	}
	return q.runner.Run(ctx, pipeline.Upload{Name: name, MediaType: job.MediaType, Reader: f})
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "path", job.Path)
		return nil
	default:
	}

	q.logger.Warn("queue.enqueue.backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to finish, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
		if q.results != nil {
			close(q.results)
		}
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}

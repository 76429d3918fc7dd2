package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file waiting for the pipeline.
type Job struct {
	Path        string
	Name        string // display name; defaults to the base name of Path
	MediaType   string // empty means detect from the extension
	SubmittedAt time.Time
	TraceID     string
}

// JobResult is reported once per job after the pipeline returns.
type JobResult struct {
	Job     Job
	Result  pipeline.Result
	Err     error
	Elapsed time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

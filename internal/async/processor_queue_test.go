package async

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ingest/constants"
	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
)

type recordingRunner struct {
	mu     sync.Mutex
	bodies map[string]string
	block  chan struct{}
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, up pipeline.Upload) (pipeline.Result, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return pipeline.Result{}, ctx.Err()
		}
	}
	body, err := io.ReadAll(up.Reader)
	if err != nil {
		return pipeline.Result{}, err
	}
	r.mu.Lock()
	r.bodies[up.Name] = string(body)
	r.mu.Unlock()
	if r.err != nil {
		return pipeline.Result{Status: constants.RunStatusFailed}, r.err
	}
	return pipeline.Result{Status: constants.RunStatusCommitted, Committed: 1}, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestProcessorQueue_RunsEveryJob(t *testing.T) {
	dir := t.TempDir()
	runner := &recordingRunner{bodies: map[string]string{}}
	results := make(chan JobResult, 8)
	q := NewProcessorQueue(runner, nil, WithWorkers(2), WithQueueSize(4), WithResults(results))

	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf", "c.png"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: writeFile(t, dir, name, "body-"+name)}))
	}
	q.Shutdown(ctx)

	var names []string
	for r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, constants.RunStatusCommitted, r.Result.Status)
		assert.False(t, r.Job.SubmittedAt.IsZero())
		names = append(names, filepath.Base(r.Job.Path))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.png"}, names)
	assert.Equal(t, "body-c.png", runner.bodies["c.png"])
}

func TestProcessorQueue_JobNameOverridesPath(t *testing.T) {
	runner := &recordingRunner{bodies: map[string]string{}}
	q := NewProcessorQueue(runner, nil, WithWorkers(1))

	p := writeFile(t, t.TempDir(), "tmp-123", "x")
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: p, Name: "invoice.pdf"}))
	q.Shutdown(context.Background())

	assert.Equal(t, "x", runner.bodies["invoice.pdf"])
}

func TestProcessorQueue_ReportsFailures(t *testing.T) {
	runner := &recordingRunner{bodies: map[string]string{}, err: errors.New("boom")}
	results := make(chan JobResult, 2)
	q := NewProcessorQueue(runner, nil, WithWorkers(1), WithResults(results))

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: writeFile(t, t.TempDir(), "a.pdf", "a")}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: filepath.Join(t.TempDir(), "missing.pdf")}))
	q.Shutdown(ctx)

	var errs []error
	for r := range results {
		errs = append(errs, r.Err)
	}
	require.Len(t, errs, 2)
	assert.Error(t, errs[0])
	assert.Error(t, errs[1])
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingRunner{bodies: map[string]string{}}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "x"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_BackpressureHonoursContext(t *testing.T) {
	runner := &recordingRunner{bodies: map[string]string{}, block: make(chan struct{})}
	q := NewProcessorQueue(runner, nil, WithWorkers(1), WithQueueSize(1))
	dir := t.TempDir()

	// One job held by the worker, one filling the buffer.
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writeFile(t, dir, "a", "a")}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writeFile(t, dir, "b", "b")}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{Path: writeFile(t, dir, "c", "c")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(runner.block)
	q.Shutdown(context.Background())
	assert.Len(t, runner.bodies, 2)
}

func TestProcessorQueue_ProcessTimeout(t *testing.T) {
	runner := &recordingRunner{bodies: map[string]string{}, block: make(chan struct{})}
	results := make(chan JobResult, 1)
	q := NewProcessorQueue(runner, nil, WithWorkers(1), WithProcessTimeout(10*time.Millisecond), WithResults(results))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: writeFile(t, t.TempDir(), "a", "a")}))
	q.Shutdown(context.Background())

	r := <-results
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
}

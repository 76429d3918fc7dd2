package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/async"
	"github.com/joseph-ayodele/invoice-ingest/internal/ingest"
)

func newWatchCmd(c *cli) *cobra.Command {
	var (
		exts     []string
		initial  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Extract files as they appear under one or more directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			results := make(chan async.JobResult, c.cfg.Queue.Size)
			q := async.NewProcessorQueue(deps.Processor, c.logger,
				async.WithWorkers(c.cfg.Queue.Workers),
				async.WithQueueSize(c.cfg.Queue.Size),
				async.WithProcessTimeout(c.cfg.Queue.JobTimeout),
				async.WithResults(results),
			)
			done := make(chan batchSummary, 1)
			go func() { done <- summarize(cmd, results) }()

			scanner := ingest.NewDirectoryScanner(c.logger, ingest.WithExtensions(exts...))
			events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initial,
				Debounce:    debounce,
			}, scanner)
			if err != nil {
				q.Shutdown(ctx)
				return err
			}

			for events != nil || errs != nil {
				select {
				case cand, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					if err := q.Enqueue(ctx, async.Job{Path: cand.Path, Name: cand.Name, MediaType: cand.MediaType}); err != nil {
						c.logger.Warn("watch.enqueue_failed", "path", cand.Path, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					c.logger.Warn("watch.error", "error", err)
				}
			}

			q.Shutdown(context.WithoutCancel(ctx))
			sum := <-done
			printf(cmd, "stopped: committed_files=%d failed_files=%d receipts=%d\n", sum.ok, sum.failed, sum.receipts)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to include")
	cmd.Flags().BoolVar(&initial, "initial", true, "process files already present when the watch starts")
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "quiet period before a written file is processed")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/async"
	"github.com/joseph-ayodele/invoice-ingest/internal/ingest"
)

func newBatchCmd(c *cli) *cobra.Command {
	var (
		exts       []string
		hidden     bool
		exportPath string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract every matching file under a directory",
		Args:  cobra.ExactArgs(1),
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

			summary := make(chan batchSummary, 1)
			go func() { summary <- summarize(cmd, results) }()

			scanner := ingest.NewDirectoryScanner(c.logger, ingest.WithExtensions(exts...), ingest.WithHidden(hidden))
			stats, scanErr := scanner.Scan(ctx, args[0], func(cand ingest.Candidate) error {
				return q.Enqueue(ctx, async.Job{Path: cand.Path, Name: cand.Name, MediaType: cand.MediaType})
			})
			q.Shutdown(context.WithoutCancel(ctx))
			sum := <-summary

			printf(cmd, "scanned=%d matched=%d committed_files=%d failed_files=%d receipts=%d\n",
				stats.Scanned, stats.Matched, sum.ok, sum.failed, sum.receipts)
			if scanErr != nil {
				return scanErr
			}
			if exportPath != "" {
				if err := writeExport(ctx, deps.Exporter, exportPath); err != nil {
					return err
				}
				printf(cmd, "exported to %s\n", exportPath)
			}
			if sum.failed > 0 {
				return fmt.Errorf("%d of %d files failed", sum.failed, sum.ok+sum.failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to include (default: pdf, images, spreadsheets, csv, txt)")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "include hidden files and directories")
	cmd.Flags().StringVar(&exportPath, "export", "", "write an XLSX export to this path after the batch")
	return cmd
}

type batchSummary struct {
	ok, failed, receipts int
}

func summarize(cmd *cobra.Command, results <-chan async.JobResult) batchSummary {
	var sum batchSummary
	for r := range results {
		sum.receipts += r.Result.Committed
		if r.Err != nil {
			sum.failed++
			printf(cmd, "FAIL %s: %v\n", r.Job.Path, r.Err)
			continue
		}
		sum.ok++
		printf(cmd, "OK   %s: %s (%d receipts)\n", r.Job.Path, r.Result.Status, r.Result.Committed)
	}
	return sum
}

func writeExport(ctx context.Context, exporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}, path string) error {
	body, err := exporter.ExportXLSX(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

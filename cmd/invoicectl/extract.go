package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/pipeline"
)

func newExtractCmd(c *cli) *cobra.Command {
	var (
		mediaType string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Run one document through the pipeline and commit its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			res, err := deps.Processor.Run(ctx, pipeline.Upload{
				Name:      filepath.Base(args[0]),
				MediaType: mediaType,
				Reader:    f,
			})
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			} else {
				printf(cmd, "run %s: status=%s total=%d committed=%d\n", res.RunID, res.Status, res.Total, res.Committed)
				if len(res.ReceiptIDs) > 0 {
					printf(cmd, "receipts: %s\n", joinIDs(res.ReceiptIDs))
				}
			}
			if err != nil {
				return fmt.Errorf("%s: %w", common.ErrorKind(err), err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mediaType, "media-type", "", "media type of the file (default: detect from extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run result as JSON")
	return cmd
}

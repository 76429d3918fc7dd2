package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/export"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

func newExportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored receipt to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := c.store(ctx)
			if err != nil {
				return err
			}
			defer db.Close(c.logger)

			svc := export.NewService(repository.NewReceiptRepository(db, c.logger), c.logger)
			if err := writeExport(ctx, svc, out); err != nil {
				return err
			}
			printf(cmd, "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "receipts.xlsx", "output XLSX path")
	return cmd
}

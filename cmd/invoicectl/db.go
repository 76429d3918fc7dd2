package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/app"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbCfg := c.cfg.Database
			dbCfg.AutoMigrate = true
			db, err := app.OpenStore(cmd.Context(), dbCfg, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(c.logger)
			printf(cmd, "migrations applied (%s)\n", db.Name)
			return nil
		},
	}
}

func newDBHealthCmd(c *cli) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check database connectivity and report the stored receipt count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dbCfg := c.cfg.Database
			db, err := repository.Open(ctx, repository.Config{Driver: dbCfg.Driver, DSN: dbCfg.DSN, DialTimeout: dbCfg.DialTimeout}, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(c.logger)

			if err := repository.HealthCheck(ctx, db, timeout, c.logger); err != nil {
				printf(cmd, "DB health: FAIL (%v)\n", err)
				return err
			}
			printf(cmd, "DB health: OK (%s)\n", db.Name)

			n, err := repository.NewReceiptRepository(db, c.logger).Count(ctx)
			if err != nil {
				printf(cmd, "receipts: unavailable (%v)\n", err)
				return nil
			}
			printf(cmd, "receipts: %d\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "ping timeout")
	return cmd
}

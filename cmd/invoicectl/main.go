package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ingest/internal/app"
	"github.com/joseph-ayodele/invoice-ingest/internal/common"
	"github.com/joseph-ayodele/invoice-ingest/internal/repository"
)

// cli carries the state every subcommand shares.
type cli struct {
	cfg    *common.Config
	logger *slog.Logger

	sqlitePath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Extract invoices, products and customers from documents",
		Long: `invoicectl runs the ingestion pipeline from the command line.
Configuration comes from the environment (and an optional .env file);
flags override the database and logging settings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.sqlitePath, "sqlite", "", "use a SQLite database file instead of DB_DRIVER/DB_URL")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "override LOG_FORMAT (json, text)")

	root.AddCommand(
		newExtractCmd(c),
		newBatchCmd(c),
		newWatchCmd(c),
		newExportCmd(c),
		newMigrateCmd(c),
		newDBHealthCmd(c),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if c.sqlitePath != "" {
		cfg.Database.Driver = repository.DriverSQLite
		cfg.Database.DSN = c.sqlitePath
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if err := cfg.Database.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = common.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(c.logger)
	return nil
}

// bootstrap builds the full pipeline, which needs a configured extraction provider.
func (c *cli) bootstrap(ctx context.Context) (*app.Dependencies, error) {
	if err := c.cfg.Extraction.Validate(); err != nil {
		return nil, err
	}
	return app.Bootstrap(ctx, c.cfg, c.logger)
}

// store opens only the database.
func (c *cli) store(ctx context.Context) (*repository.DB, error) {
	return app.OpenStore(ctx, c.cfg.Database, c.logger)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func joinIDs[T fmt.Stringer](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

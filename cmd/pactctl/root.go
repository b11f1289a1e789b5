package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"pactflow/db"
	"pactflow/logger"
)

var errNoDatabaseURL = errors.New("database url is required (--database-url or DATABASE_URL)")

type globalOpts struct {
	databaseURL string
	logLevel    string
}

func NewRootCmd() *cobra.Command {
	opts := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "pactctl",
		Short: "Maintenance commands for pactflow",
		Long: `pactctl - maintenance commands for pactflow

Applies and rolls back schema migrations, re-derives agreement statuses from
party states and drains the notification outbox without running the API.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newRepairCmd(opts),
		newOutboxCmd(opts),
		newRenderCmd(),
	)
	return rootCmd
}

func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

func (o *globalOpts) requireDatabase() error {
	if o.databaseURL == "" {
		return errNoDatabaseURL
	}
	return nil
}

// logger writes to the command's stderr so stdout stays parseable.
func (o *globalOpts) logger(cmd *cobra.Command) *slog.Logger {
	return logger.Setup(cmd.ErrOrStderr(), logger.ParseLevel(o.logLevel))
}

func (o *globalOpts) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if err := o.requireDatabase(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, o.databaseURL, db.PoolOptions{MaxConns: 4, MinConns: 1})
}

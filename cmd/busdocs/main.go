package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/busdocs/internal/config"
	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/logging"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	handle *database.Handle
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, &app{}, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "busdocs: %v\n", err)
		os.Exit(1)
	}
}

// execute runs the command line and releases the database handle whether or
// not the command succeeded. cobra skips post-run hooks on errors.
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()
	rootCmd := newRootCommand(a)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *app) close() {
	if a.handle != nil {
		a.handle.Close()
		a.handle = nil
	}
}

func newRootCommand(a *app) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "busdocs",
		Short: "Fleet document compliance tooling",
		Long: `busdocs manages the document database of the bus fleet: it bootstraps the schema,
runs the document analysis over stored files, exports completeness reports and
shows the recorded status of a bus.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			// stdout is reserved for command output
			a.logger = logging.New(cmd.ErrOrStderr(), "busdocs-cli", cfg.LogLevel)
			slog.SetDefault(a.logger)
			a.handle = database.NewHandle(cfg.DatabaseURL)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	cmd.AddCommand(
		newMigrateCmd(a),
		newAnalyzeCmd(a),
		newReportCmd(a),
		newStatusCmd(a),
	)
	return cmd
}

func (a *app) db(ctx context.Context) (*sql.DB, error) {
	return a.handle.DB(ctx)
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.db(ctx)
			if err != nil {
				return err
			}
			if err := database.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Esquema listo.")
			return nil
		},
	}
}

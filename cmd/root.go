package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/satheeshds/trackey/config"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// cfg is filled in before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trackey",
	Short: "Trackey - debt ledger and device inventory for gadget stores",
	Long: `Trackey keeps a store's customer debts, their payment history and the
per-device inventory of its product batches.

Configuration is read from the environment (and a .env file, if present):
  DATABASE_URL         PostgreSQL connection string
  PORT                 HTTP port (default 8080)
  AUTH_USER/AUTH_PASS  Basic auth credentials, both or neither
  LOG_LEVEL            debug, info, warn or error
  SOLD_LOOKUP_TIMEOUT  bound on the sales lookup behind device listings
  REPORT_DB_PATH       DuckDB file written by "trackey report"`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

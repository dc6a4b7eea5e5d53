package cmd

import (
	"github.com/satheeshds/trackey/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		pool, err := db.Open(cmd.Context(), cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.Migrate(pool)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

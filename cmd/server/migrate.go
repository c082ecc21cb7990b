package main

import (
	"github.com/spf13/cobra"

	"blog/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		log.WithField("driver", cfg.Database.Driver).Info("migrations applied")
		return database.Close()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/sow-service/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Postgres.MigrationsDir = dir
		}

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()

		return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger)
	},
}

func init() {
	migrateCmd.Flags().String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	rootCmd.AddCommand(migrateCmd)
}

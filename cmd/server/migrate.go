package main

import (
	"errors"

	"github.com/spf13/cobra"

	"sharereg/internal/platform/config"
	"sharereg/internal/platform/logger"
	"sharereg/internal/platform/postgres"
	pgstore "sharereg/internal/storage/postgres"
)

func migrateCommand() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("DATABASE_URL is required to migrate")
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)

			db, err := postgres.Connect(cmd.Context(), cfg.Postgres, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if down {
				if err := pgstore.MigrateDown(db.DB); err != nil {
					return err
				}
				log.Info("schema rolled back")
				return nil
			}
			if err := pgstore.Migrate(db.DB); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")
	return cmd
}

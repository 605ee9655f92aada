package main

import (
	"github.com/spf13/cobra"

	migrations "github.com/memohai/sticker-export-bot/db"
	"github.com/memohai/sticker-export-bot/internal/db"
	"github.com/memohai/sticker-export-bot/internal/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|version|force N>",
		Short:     "Manage the PostgreSQL state store schema",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down", "version", "force"},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			return db.RunMigrate(logger.L, db.DSN(cfg.Postgres), migrations.MigrationsFS, "migrations", args[0], args[1:])
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
)

func newMigrateCmd(d deps, cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{db.MigrateUp, db.MigrateDown, db.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := db.MigrateUp
			if len(args) == 1 {
				action = args[0]
			}
			ctx := cmd.Context()
			sqlDB, err := d.connect(ctx, cfg())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer sqlDB.Close()

			if err := db.Migrate(ctx, sqlDB, action); err != nil {
				return fmt.Errorf("migrate %s: %w", action, err)
			}
			telemetry.Info("manage.migrate.done", map[string]any{"action": action})
			return nil
		},
	}
}

// Command migrate applies pending database migrations and exits. It is the
// release step in deploys; `manage migrate` covers rollback and status.
package main

import (
	"context"
	"fmt"
	"os"

	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer telemetry.Sync()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Defaults(db.ProfileCLI).FromEnv())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		return err
	}
	telemetry.Info("migrate.done", nil)
	return nil
}

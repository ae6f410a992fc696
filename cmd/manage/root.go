package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
)

const app = "manage"

// deps isolates process wiring so commands can run against in-memory stores.
type deps struct {
	loadConfig func() config.Config
	build      func(cfg config.Config) (*bootstrap.App, error)
	connect    func(ctx context.Context, cfg config.Config) (*sql.DB, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		build: func(cfg config.Config) (*bootstrap.App, error) {
			return bootstrap.Build(cfg,
				bootstrap.WithDBOptions(db.Defaults(db.ProfileCLI).FromEnv()),
				bootstrap.WithoutRouter(),
			)
		},
		connect: func(ctx context.Context, cfg config.Config) (*sql.DB, error) {
			return db.Connect(ctx, cfg.DatabaseURL, db.Defaults(db.ProfileCLI).FromEnv())
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:           app,
		Short:         "manage runs administrative tasks for the job board backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = d.loadConfig()
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = cfg.LogLevel
			}
			if err := telemetry.Init(cfg.Env, level); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			telemetry.Sync()
		},
	}
	root.PersistentFlags().String("log-level", "", "log level (default LOG_LEVEL)")

	current := func() config.Config { return cfg }
	root.AddCommand(
		newMigrateCmd(d, current),
		newQuestionsCmd(d, current),
		newUsersCmd(d, current),
	)
	return root
}

// withApp builds the service graph for one command and closes it afterwards.
func withApp(d deps, cfg config.Config, fn func(*bootstrap.App) error) error {
	a, err := d.build(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()
	return fn(a)
}

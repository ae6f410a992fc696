package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/telemetry"
)

func newUsersCmd(d deps, cfg func() config.Config) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant admin rights to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(d, cfg(), func(a *bootstrap.App) error {
				user, err := a.Users.Promote(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("promote %s: %w", args[0], err)
				}
				telemetry.Info("manage.users.promoted", map[string]any{"user_id": user.ID})
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", user.Email)
				return nil
			})
		},
	})
	return usersCmd
}

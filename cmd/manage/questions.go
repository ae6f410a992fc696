package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/telemetry"
)

func newQuestionsCmd(d deps, cfg func() config.Config) *cobra.Command {
	questions := &cobra.Command{
		Use:   "questions",
		Short: "Manage the interview question bank",
	}
	questions.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Import questions from a JSON array, skipping texts that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return withApp(d, cfg(), func(a *bootstrap.App) error {
				res, err := a.Interview.ImportQuestions(cmd.Context(), raw)
				if err != nil {
					return err
				}
				telemetry.Info("manage.questions.imported", map[string]any{
					"file":    args[0],
					"created": res.Created,
					"skipped": res.Skipped,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", res.Created, res.Skipped)
				return nil
			})
		},
	})
	return questions
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/aquamind/internal/db"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the snapshot database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := db.RunMigrations(a.cfg.DB(), a.logger.Named("migrate")); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := db.RollbackMigrations(a.cfg.DB(), a.logger.Named("migrate")); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations reverted")
				return nil
			},
		},
	)
	return cmd
}

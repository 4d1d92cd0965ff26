package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vipul43/ledger-sync/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(*cobra.Command, []string) error {
			if err := database.RunMigrations(a.cfg.DatabaseURL, database.DefaultEngine); err != nil {
				return err
			}
			color.Green("Migrations completed successfully")
			return nil
		},
	}
}

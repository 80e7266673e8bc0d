package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xela07ax/evco-audit/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the audit_logs schema for the postgres sink.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Database.URL == "" {
			return errors.New("database.url (DATABASE_URL) is required")
		}

		version, err := postgres.Migrate(appConfig.Database.URL, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: schema version %d\n", args[0], version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

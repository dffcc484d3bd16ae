package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dsrengine/internal/platform/config"
	"dsrengine/internal/platform/database"
)

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Applies the embedded migrations to the database named by DATABASE_URL.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			pool, err := database.New(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // process exits right after

			if !status {
				if err := database.Migrate(cmd.Context(), pool.DB()); err != nil {
					return err
				}
			}
			v, err := database.MigrationStatus(cmd.Context(), pool.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Only print the current schema version")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:       "migrate <up|down|status>",
		Short:     "Apply, roll back or inspect the database schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(postgres.MigrateUp), string(postgres.MigrateDown), string(postgres.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := postgres.MigrationDirection(strings.ToLower(args[0]))
			switch dir {
			case postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus:
			default:
				return fmt.Errorf("unknown migration direction %q (expected up|down|status)", args[0])
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			pool, err := postgres.NewPool(cmd.Context(), databaseURL, postgres.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool, dir, cmd.OutOrStdout()); err != nil {
				return err
			}
			if dir != postgres.MigrateStatus {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default $DATABASE_URL)")

	return cmd
}

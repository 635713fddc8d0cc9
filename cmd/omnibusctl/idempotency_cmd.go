package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
	pgidempotency "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/idempotency"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

func newIdempotencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Maintain stored Idempotency-Key bindings",
	}

	cmd.AddCommand(newIdempotencyPruneCmd())

	return cmd
}

func newIdempotencyPruneCmd() *cobra.Command {
	var (
		databaseURL string
		olderThan   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete idempotency entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			if olderThan < idempotency.Retention {
				return fmt.Errorf("--older-than must be at least %s", idempotency.Retention)
			}

			pool, err := postgres.NewPool(cmd.Context(), databaseURL, postgres.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := pgidempotency.NewStore(pool).Prune(cmd.Context(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d idempotency entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default $DATABASE_URL)")
	cmd.Flags().DurationVar(&olderThan, "older-than", idempotency.Retention, "Minimum age of entries to delete")

	return cmd
}

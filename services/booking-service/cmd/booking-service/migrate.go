package main

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/repbook/libs/config"
	"github.com/md-rashed-zaman/repbook/libs/db"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			applied, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("No pending migrations.")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			fmt.Printf("Applied %d migration(s).\n", len(applied))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-8s %-30s %-8s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, st := range statuses {
				status, at := "pending", "-"
				if st.Applied {
					status = "applied"
					if st.AppliedAt != nil {
						at = st.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-8d %-30s %-8s %s\n", st.Version, st.Name, status, at)
			}
			return nil
		},
	})

	return cmd
}

// openMigrator only needs DATABASE_URL, so migrations can run before the
// rest of the service is configured.
func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	url, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.Open(ctx, url, db.PoolConfig{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, storage.Migrations()), pool.Close, nil
}

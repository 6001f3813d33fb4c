package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status

The migration system tracks applied migrations in the schema_migrations
table and applies new migrations in sequential order.

Examples:
  # Apply all pending migrations
  sharkwire migrate up

  # Check migration status
  sharkwire migrate status`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Long: `Apply all pending database migrations.

Migrations are applied in a transaction and roll back on failure.

Example:
  sharkwire migrate up`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long: `Show which migrations have been applied and which are pending.

Example:
  sharkwire migrate status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context())
		},
	}
}

func runMigrateUp(ctx context.Context) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := persistence.NewMigrationManager(db)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("All migrations applied")
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := persistence.NewMigrationManager(db)
	statuses, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Println("Migration status:")
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Printf("  %03d  %-8s %s\n", s.Version, state, s.Description)
	}
	return nil
}

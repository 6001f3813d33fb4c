package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/roster"
)

// NewSyncRosterCmd creates the roster sync command
func NewSyncRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-roster",
		Short: "Sync player entities from the roster page",
		Long: `Fetch the configured roster page, upsert an entity for every active
and non-roster player, and remove players who are no longer listed.
Departed players lose their cluster links too.

The worker runs this daily; use the command for an immediate refresh
after a trade or signing.

Example:
  sharkwire sync-roster`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			syncer := roster.NewSyncer(db, rosterConfig())
			result, err := syncer.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("roster sync failed: %w", err)
			}

			fmt.Printf("Roster synced: %d players, %d removed\n", result.Synced, result.Removed)
			return nil
		},
	}
}

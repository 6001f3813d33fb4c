package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/maintenance"
)

// NewPurgeCmd creates the purge command
func NewPurgeCmd() *cobra.Command {
	var withCache bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge expired raw items and validation logs",
		Long: `Delete raw items fetched before the retention cutoff, along with
their validation logs. Variants and cluster links derived from purged
items cascade away; clusters themselves are kept.

The worker runs this daily. Pass --cache to also drop expired feed
validator cache entries.

Examples:
  sharkwire purge
  sharkwire purge --cache`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			m := maintenance.NewMaintainer(db, maintenanceConfig())
			result, err := m.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			fmt.Printf("Purged %d raw items and %d validation logs\n",
				result.RawItemsDeleted, result.ValidationLogsDeleted)

			if withCache {
				deleted, err := m.CleanFeedCache(cmd.Context())
				if err != nil {
					return fmt.Errorf("feed cache cleanup failed: %w", err)
				}
				fmt.Printf("Dropped %d expired feed cache entries\n", deleted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withCache, "cache", false, "Also clean the feed validator cache")

	return cmd
}

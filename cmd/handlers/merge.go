package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/clusterer"
)

// NewMergeCmd creates the cluster merge command
func NewMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-clusters <cluster-id> <cluster-id>...",
		Short: "Merge clusters into one",
		Long: `Merge two or more clusters that turned out to describe the same
event. The first ID is the target; every variant, tag, and entity link
from the others moves onto it and the emptied clusters are deleted.

Example:
  sharkwire merge-clusters 240 241 242`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			c := clusterer.New(db, clusterConfig())
			target, err := c.Merge(cmd.Context(), ids)
			if err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}

			fmt.Printf("Merged %d clusters into %d (%q, %d sources)\n",
				len(ids), target.ID, target.Headline, target.SourceCount)
			return nil
		},
	}
}

package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sharkwire/internal/enrich"
)

// NewEnrichCmd creates the one-shot enrichment command
func NewEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <raw-item-id>...",
		Short: "Enrich specific raw items",
		Long: `Run the enrichment pipeline (relevance filter, entity matching,
clustering) over the given raw item IDs. Items that already have a
variant are skipped, so re-running is safe.

Example:
  sharkwire enrich 1042 1043`,
		Args: cobra.MinimumNArgs(1),
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

			pipeline := enrich.NewPipeline(db, enrichConfig())
			for _, id := range ids {
				result, err := pipeline.Process(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("failed to enrich raw item %d: %w", id, err)
				}
				printEnrichResult(id, result)
			}
			return nil
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

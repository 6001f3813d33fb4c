package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/core"
	"sharkwire/internal/enrich"
	"sharkwire/internal/ingest"
	"sharkwire/internal/logger"
)

// NewIngestCmd creates the one-shot ingest command
func NewIngestCmd() *cobra.Command {
	var sourceName string
	var skipEnrich bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch approved sources once",
		Long: `Run a single ingest pass over the approved sources and enrich the
new items inline. Use this to backfill after adding sources or to test
a source without starting the worker.

Examples:
  # All approved sources
  sharkwire ingest

  # A single source by name
  sharkwire ingest --source "The Athletic"

  # Fetch only, leave enrichment to the worker
  sharkwire ingest --skip-enrich`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), sourceName, skipEnrich)
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "Ingest only the named source")
	cmd.Flags().BoolVar(&skipEnrich, "skip-enrich", false, "Skip inline enrichment of new items")

	return cmd
}

func runIngest(ctx context.Context, sourceName string, skipEnrich bool) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	sources, err := db.Sources().ListApproved(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approved sources: %w", err)
	}
	if sourceName != "" {
		sources = filterSourcesByName(sources, sourceName)
		if len(sources) == 0 {
			return fmt.Errorf("no approved source named %q", sourceName)
		}
	}

	ingestor := ingest.NewIngestor(db, ingestConfig())

	var newItems []int64
	created, duplicates := 0, 0
	for i := range sources {
		source := sources[i]
		result, err := ingestor.IngestSource(ctx, &source)
		if err != nil {
			logger.Warn("Source ingest failed", "source", source.Name, "error", err.Error())
			fmt.Printf("  %-30s failed: %v\n", source.Name, err)
			continue
		}
		fmt.Printf("  %-30s fetched=%d created=%d duplicates=%d\n",
			source.Name, result.Fetched, result.Created, result.Duplicates)
		created += result.Created
		duplicates += result.Duplicates
		newItems = append(newItems, result.NewItemIDs...)
	}
	fmt.Printf("Ingested %d sources: %d new, %d duplicates\n", len(sources), created, duplicates)

	if skipEnrich || len(newItems) == 0 {
		return nil
	}

	pipeline := enrich.NewPipeline(db, enrichConfig())
	for _, id := range newItems {
		result, err := pipeline.Process(ctx, id)
		if err != nil {
			logger.Warn("Enrichment failed", "raw_item_id", id, "error", err.Error())
			continue
		}
		printEnrichResult(id, result)
	}
	return nil
}

func filterSourcesByName(sources []core.Source, name string) []core.Source {
	var matched []core.Source
	for _, s := range sources {
		if s.Name == name {
			matched = append(matched, s)
		}
	}
	return matched
}

func printEnrichResult(rawItemID int64, result *enrich.Result) {
	if result.Skipped {
		fmt.Printf("  raw item %d skipped: %s\n", rawItemID, result.SkipReason)
		return
	}
	verb := "joined"
	if result.ClusterCreated {
		verb = "created"
	}
	fmt.Printf("  raw item %d -> variant %d %s cluster %d\n",
		rawItemID, result.VariantID, verb, result.ClusterID)
}

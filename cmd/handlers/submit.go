package handlers

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sharkwire/internal/enrich"
	"sharkwire/internal/submissions"
)

// NewSubmitCmd creates the story submission command
func NewSubmitCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a story URL by hand",
		Long: `Submit a story URL the way a reader submission would arrive, then
enrich it inline. Duplicates resolve to their existing cluster without
creating anything.

Examples:
  sharkwire submit https://example.com/sharks-story
  sharkwire submit https://example.com/sharks-story --note "from the beat thread"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, args[0], note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Optional note stored with the submission")

	return cmd
}

func runSubmit(cmd *cobra.Command, url, note string) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	service := submissions.NewService(db, submissionsConfig())

	// Enrich inline instead of handing off to a worker queue.
	pipeline := enrich.NewPipeline(db, enrichConfig())
	service.Enqueue = func(rawItemID, submissionID int64) {
		result, err := pipeline.Process(ctx, rawItemID)
		if err != nil {
			fmt.Printf("Enrichment failed: %v\n", err)
			return
		}
		published := result.VariantID != 0 && !result.Skipped
		if err := service.CompleteEnrichment(ctx, submissionID,
			result.VariantID, result.ClusterID, published); err != nil {
			fmt.Printf("Failed to record enrichment outcome: %v\n", err)
			return
		}
		printEnrichResult(rawItemID, result)
	}

	submission, err := service.Submit(ctx, url, note, "127.0.0.1")
	if err != nil {
		if errors.Is(err, submissions.ErrRateLimited) {
			return fmt.Errorf("rate limited: %w", err)
		}
		return fmt.Errorf("submission failed: %w", err)
	}

	fmt.Printf("Submission %d: status %s\n", submission.ID, submission.Status)
	if submission.ClusterID != nil {
		fmt.Printf("  resolves to cluster %d\n", *submission.ClusterID)
	}
	return nil
}

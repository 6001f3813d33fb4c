package handlers

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sharkwire/internal/ingest"
	"sharkwire/internal/logger"
	"sharkwire/internal/maintenance"
	"sharkwire/internal/roster"
	"sharkwire/internal/scheduler"
	"sharkwire/internal/submissions"
)

// NewWorkerCmd creates the long-running worker command
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker",
		Long: `Run the background worker until interrupted.

The worker owns the full pipeline:
  • Periodic ingest cycles over all approved sources
  • Enrichment (relevance filter, entity matching, clustering) of new items
  • Daily roster synchronization
  • Daily purge of expired raw items and validation logs
  • Hourly feed cache cleanup

Stop with SIGINT or SIGTERM; queued work drains before exit.

Example:
  sharkwire worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd)
		},
	}
}

func runWorker(cmd *cobra.Command) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	deps := scheduler.Deps{
		Store:       db,
		Ingestor:    ingest.NewIngestor(db, ingestConfig()),
		EnrichCfg:   enrichConfig(),
		Roster:      roster.NewSyncer(db, rosterConfig()),
		Maintainer:  maintenance.NewMaintainer(db, maintenanceConfig()),
		Submissions: submissions.NewService(db, submissionsConfig()),
	}
	s := scheduler.New(deps, schedulerConfig())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker starting")
	s.Start(ctx)
	return nil
}

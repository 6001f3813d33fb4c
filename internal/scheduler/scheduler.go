// Package scheduler runs the periodic pipeline work: the ingest fan-out,
// enrichment of new raw items, roster sync, purging, and cache cleanup. Work
// flows through a bounded task queue served by a fixed worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sharkwire/internal/enrich"
	"sharkwire/internal/ingest"
	"sharkwire/internal/logger"
	"sharkwire/internal/maintenance"
	"sharkwire/internal/persistence"
	"sharkwire/internal/roster"
	"sharkwire/internal/submissions"
)

// ErrQueueFull is returned when the task queue cannot accept more work.
var ErrQueueFull = errors.New("task queue full")

// Task is one unit of queued work. Each worker owns an enrichment pipeline
// and passes it to the task.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context, pipeline *enrich.Pipeline) error
}

// Config controls the scheduler.
type Config struct {
	Workers        int
	QueueSize      int
	IngestInterval time.Duration
	RosterInterval time.Duration
	PurgeInterval  time.Duration
	CacheInterval  time.Duration
	TaskSoftLimit  time.Duration // Exceeding this logs a warning
	TaskHardLimit  time.Duration // Exceeding this cancels the task
}

// DefaultConfig returns the standard scheduler settings.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		QueueSize:      256,
		IngestInterval: 15 * time.Minute,
		RosterInterval: 24 * time.Hour,
		PurgeInterval:  24 * time.Hour,
		CacheInterval:  time.Hour,
		TaskSoftLimit:  50 * time.Minute,
		TaskHardLimit:  time.Hour,
	}
}

// Deps carries the scheduler's collaborators.
type Deps struct {
	Store       persistence.Store
	Ingestor    *ingest.Ingestor
	EnrichCfg   enrich.Config
	Roster      *roster.Syncer
	Maintainer  *maintenance.Maintainer
	Submissions *submissions.Service // Optional
}

// Scheduler owns the worker pool and the periodic tickers.
type Scheduler struct {
	deps  Deps
	cfg   Config
	tasks chan Task
	wg    sync.WaitGroup
}

// New creates a scheduler. When a submission service is present its enqueue
// hook is wired so accepted submissions flow through enrichment.
func New(deps Deps, cfg Config) *Scheduler {
	s := &Scheduler{
		deps:  deps,
		cfg:   cfg,
		tasks: make(chan Task, cfg.QueueSize),
	}
	if deps.Submissions != nil {
		deps.Submissions.Enqueue = func(rawItemID, submissionID int64) {
			if err := s.EnqueueEnrich(rawItemID, submissionID); err != nil {
				logger.Warn("Failed to enqueue submission enrichment",
					"raw_item_id", rawItemID, "error", err.Error())
			}
		}
	}
	return s
}

// Start launches the workers and tickers. It blocks until ctx is cancelled
// and all queued work has drained. The ticker goroutine is waited out before
// the queue closes, so a cycle still in flight at shutdown can finish its
// enqueues.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("Scheduler starting", "workers", s.cfg.Workers,
		"queue_size", s.cfg.QueueSize)

	for n := 0; n < s.cfg.Workers; n++ {
		s.wg.Add(1)
		go s.worker(ctx, n)
	}

	var producers sync.WaitGroup
	producers.Add(1)
	go s.runTickers(ctx, &producers)

	<-ctx.Done()
	producers.Wait()
	close(s.tasks)
	s.wg.Wait()
	logger.Info("Scheduler stopped")
}

// Enqueue adds a task without blocking; a full queue is an error so callers
// can decide whether dropping is acceptable.
func (s *Scheduler) Enqueue(task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	select {
	case s.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueEnrich queues enrichment of one raw item. submissionID, when
// nonzero, links the outcome back to the submission.
func (s *Scheduler) EnqueueEnrich(rawItemID, submissionID int64) error {
	return s.Enqueue(Task{
		Name: fmt.Sprintf("enrich raw item %d", rawItemID),
		Run: func(ctx context.Context, pipeline *enrich.Pipeline) error {
			result, err := pipeline.Process(ctx, rawItemID)
			if err != nil {
				return err
			}
			if submissionID != 0 && s.deps.Submissions != nil {
				published := result.VariantID != 0 && !result.Skipped
				return s.deps.Submissions.CompleteEnrichment(ctx,
					submissionID, result.VariantID, result.ClusterID, published)
			}
			return nil
		},
	})
}

// worker consumes tasks until the queue closes. Each worker keeps one
// enrichment pipeline so the lazily-built model handle is never shared.
func (s *Scheduler) worker(ctx context.Context, n int) {
	defer s.wg.Done()
	pipeline := enrich.NewPipeline(s.deps.Store, s.deps.EnrichCfg)

	for task := range s.tasks {
		s.runTask(ctx, pipeline, task, n)
	}
}

func (s *Scheduler) runTask(ctx context.Context, pipeline *enrich.Pipeline, task Task, worker int) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.TaskHardLimit > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, s.cfg.TaskHardLimit)
		defer cancel()
	}

	var soft *time.Timer
	if s.cfg.TaskSoftLimit > 0 {
		soft = time.AfterFunc(s.cfg.TaskSoftLimit, func() {
			logger.Warn("Task exceeding soft time limit",
				"task_id", task.ID, "task", task.Name, "worker", worker)
		})
		defer soft.Stop()
	}

	start := time.Now()
	if err := task.Run(taskCtx, pipeline); err != nil {
		logger.Error("Task failed", err, "task_id", task.ID, "task", task.Name,
			"worker", worker, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Debug("Task finished", "task_id", task.ID, "task", task.Name,
		"worker", worker, "duration_ms", time.Since(start).Milliseconds())
}

// runTickers drives the periodic work until ctx is cancelled. An ingest
// cycle runs immediately on startup.
func (s *Scheduler) runTickers(ctx context.Context, producers *sync.WaitGroup) {
	defer producers.Done()

	if err := s.IngestCycle(ctx); err != nil {
		logger.Error("Initial ingest cycle failed", err)
	}

	ingestTicker := time.NewTicker(s.cfg.IngestInterval)
	rosterTicker := time.NewTicker(s.cfg.RosterInterval)
	purgeTicker := time.NewTicker(s.cfg.PurgeInterval)
	cacheTicker := time.NewTicker(s.cfg.CacheInterval)
	defer ingestTicker.Stop()
	defer rosterTicker.Stop()
	defer purgeTicker.Stop()
	defer cacheTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ingestTicker.C:
			if err := s.IngestCycle(ctx); err != nil {
				logger.Error("Ingest cycle failed", err)
			}
		case <-rosterTicker.C:
			if _, err := s.deps.Roster.Sync(ctx); err != nil {
				logger.Error("Roster sync failed", err)
			}
		case <-purgeTicker.C:
			if _, err := s.deps.Maintainer.Purge(ctx); err != nil {
				logger.Error("Purge failed", err)
			}
		case <-cacheTicker.C:
			if _, err := s.deps.Maintainer.CleanFeedCache(ctx); err != nil {
				logger.Error("Feed cache cleanup failed", err)
			}
		}
	}
}

// IngestCycle fans out over all approved sources concurrently and queues
// enrichment for every new raw item. A failing source does not stop the
// others.
func (s *Scheduler) IngestCycle(ctx context.Context) error {
	sources, err := s.deps.Store.Sources().ListApproved(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approved sources: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	var mu sync.Mutex
	var newItems []int64

	for i := range sources {
		source := sources[i]
		g.Go(func() error {
			result, err := s.deps.Ingestor.IngestSource(gctx, &source)
			if err != nil {
				// Recorded on the source; the cycle keeps going.
				logger.Warn("Source ingest failed", "source_id", source.ID,
					"name", source.Name, "error", err.Error())
				return nil
			}
			mu.Lock()
			newItems = append(newItems, result.NewItemIDs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, id := range newItems {
		if err := s.EnqueueEnrich(id, 0); err != nil {
			logger.Warn("Failed to enqueue enrichment", "raw_item_id", id,
				"error", err.Error())
		}
	}
	logger.Info("Ingest cycle complete", "sources", len(sources),
		"new_items", len(newItems))
	return nil
}

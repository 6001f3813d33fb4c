package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sharkwire/internal/clusterer"
	"sharkwire/internal/core"
	"sharkwire/internal/enrich"
	"sharkwire/internal/ingest"
	"sharkwire/internal/maintenance"
	"sharkwire/internal/persistence"
	"sharkwire/internal/relevance"
	"sharkwire/internal/roster"
	"sharkwire/internal/submissions"
)

type stubFetcher struct {
	items []ingest.FetchedItem
}

func (s *stubFetcher) Fetch(context.Context, *core.Source) ([]ingest.FetchedItem, error) {
	return s.items, nil
}

func testDeps(t *testing.T) (Deps, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	ctx := context.Background()

	for _, e := range []core.Entity{
		{Name: "Macklin Celebrini", EntityType: "player"},
		{Name: "San Jose Sharks", EntityType: core.EntityTypeTeam},
	} {
		entity := e
		if err := store.Entities().Upsert(ctx, &entity); err != nil {
			t.Fatal(err)
		}
	}

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.RetryInitialInterval = time.Millisecond

	return Deps{
		Store:    store,
		Ingestor: ingest.NewIngestor(store, ingestCfg),
		EnrichCfg: enrich.Config{
			Relevance: relevance.Config{TopicKeywords: []string{"sharks", "san jose"}},
			Cluster:   clusterer.DefaultConfig(),
		},
		Roster:      roster.NewSyncer(store, roster.DefaultConfig()),
		Maintainer:  maintenance.NewMaintainer(store, maintenance.DefaultConfig()),
		Submissions: submissions.NewService(store, submissions.DefaultConfig()),
	}, store
}

func testSchedulerConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.QueueSize = 16
	return cfg
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkersExecuteQueuedTasks(t *testing.T) {
	deps, _ := testDeps(t)
	s := New(deps, testSchedulerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		err := s.Enqueue(Task{
			Name: "count",
			Run: func(context.Context, *enrich.Pipeline) error {
				mu.Lock()
				ran++
				mu.Unlock()
				return nil
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran == 5
	})

	cancel()
	<-done
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	deps, _ := testDeps(t)
	cfg := testSchedulerConfig()
	cfg.QueueSize = 1
	s := New(deps, cfg)

	// No workers running: the second enqueue must fail fast.
	blocker := Task{Name: "noop", Run: func(context.Context, *enrich.Pipeline) error { return nil }}
	if err := s.Enqueue(blocker); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(blocker); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestIngestCycleEnqueuesEnrichment(t *testing.T) {
	deps, store := testDeps(t)
	ctx := context.Background()

	source := &core.Source{
		Name:         "Sharks Feed",
		Category:     core.SourceCategoryPress,
		IngestMethod: core.IngestMethodRSS,
		FeedURL:      "https://example.com/feed",
		Status:       core.SourceStatusApproved,
	}
	if err := store.Sources().Create(ctx, source); err != nil {
		t.Fatal(err)
	}
	deps.Ingestor.RegisterFetcher(core.IngestMethodRSS, &stubFetcher{items: []ingest.FetchedItem{{
		SourceItemID: "guid-1",
		URL:          "https://example.com/celebrini",
		Title:        "Sharks sign Celebrini to extension",
	}}})

	s := New(deps, testSchedulerConfig())

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(runCtx)
		close(done)
	}()

	// Start runs an immediate ingest cycle; the new item flows through
	// enrichment on a worker.
	waitFor(t, 3*time.Second, func() bool {
		n, _ := store.SiteMetrics().Get(ctx, "variants_created")
		return n == 1
	})

	raw, err := store.RawItems().GetByCanonicalURL(ctx, "https://example.com/celebrini")
	if err != nil {
		t.Fatal(err)
	}
	variant, err := store.Variants().GetByRawItem(ctx, raw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if variant.EventType != core.EventTypeSigning {
		t.Errorf("event type = %q, want signing", variant.EventType)
	}

	cancel()
	<-done
}

// blockingFetcher parks in Fetch until released.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	items   []ingest.FetchedItem
}

func (f *blockingFetcher) Fetch(context.Context, *core.Source) ([]ingest.FetchedItem, error) {
	close(f.entered)
	<-f.release
	return f.items, nil
}

func TestShutdownWaitsForInFlightCycle(t *testing.T) {
	deps, store := testDeps(t)
	ctx := context.Background()

	source := &core.Source{
		Name:         "Sharks Feed",
		Category:     core.SourceCategoryPress,
		IngestMethod: core.IngestMethodRSS,
		FeedURL:      "https://example.com/feed",
		Status:       core.SourceStatusApproved,
	}
	if err := store.Sources().Create(ctx, source); err != nil {
		t.Fatal(err)
	}
	fetcher := &blockingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		items: []ingest.FetchedItem{{
			SourceItemID: "guid-1",
			URL:          "https://example.com/celebrini",
			Title:        "Sharks sign Celebrini to extension",
		}},
	}
	deps.Ingestor.RegisterFetcher(core.IngestMethodRSS, fetcher)

	s := New(deps, testSchedulerConfig())
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(runCtx)
		close(done)
	}()

	// Cancel while the initial cycle is mid-fetch, then let it finish. The
	// cycle's enqueues land after cancellation and must not hit a closed
	// queue.
	<-fetcher.entered
	cancel()
	close(fetcher.release)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSubmissionEnqueueHookWired(t *testing.T) {
	deps, _ := testDeps(t)
	s := New(deps, testSchedulerConfig())

	if deps.Submissions.Enqueue == nil {
		t.Fatal("submission enqueue hook not wired")
	}

	// The hook queues an enrich task for the submitted raw item.
	deps.Submissions.Enqueue(123, 45)
	select {
	case task := <-s.tasks:
		if task.Name != "enrich raw item 123" {
			t.Errorf("task = %q", task.Name)
		}
	default:
		t.Fatal("no task queued by the submission hook")
	}
}

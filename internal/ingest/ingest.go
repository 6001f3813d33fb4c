// Package ingest fetches items from approved sources and records them as raw
// items, deduplicating across fetch runs.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

// FetchedItem is the fetcher-agnostic shape of one upstream item.
type FetchedItem struct {
	SourceItemID string // External GUID, may be empty
	URL          string
	Title        string
	Description  string
	Content      string
	PublishedAt  *time.Time
}

// Fetcher retrieves the current items of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source *core.Source) ([]FetchedItem, error)
}

// Config controls fetch behavior.
type Config struct {
	UserAgent            string
	RequestTimeout       time.Duration
	FeedCacheTTL         time.Duration
	MaxFetchRetries      uint64
	RetryInitialInterval time.Duration
}

// DefaultConfig returns the standard fetch settings.
func DefaultConfig() Config {
	return Config{
		UserAgent:            "sharkwire/1.0 (+news aggregator)",
		RequestTimeout:       30 * time.Second,
		FeedCacheTTL:         time.Hour,
		MaxFetchRetries:      3,
		RetryInitialInterval: time.Minute,
	}
}

// SourceResult summarizes one ingest run over a source.
type SourceResult struct {
	SourceID   int64
	Fetched    int // Items the fetcher returned
	Created    int // New raw items
	Duplicates int // Items already known
	Skipped    int // Items dropped before dedup (bad URL)
	NewItemIDs []int64
}

// Ingestor runs fetchers and persists their output.
type Ingestor struct {
	store    persistence.Store
	cfg      Config
	fetchers map[core.IngestMethod]Fetcher
	now      func() time.Time
}

// NewIngestor builds an ingestor with the standard fetcher set.
func NewIngestor(store persistence.Store, cfg Config) *Ingestor {
	i := &Ingestor{
		store:    store,
		cfg:      cfg,
		fetchers: make(map[core.IngestMethod]Fetcher),
		now:      time.Now,
	}
	i.fetchers[core.IngestMethodRSS] = NewRSSFetcher(store.FeedCache(), cfg)
	i.fetchers[core.IngestMethodHTML] = NewHTMLFetcher(cfg)
	i.fetchers[core.IngestMethodAPI] = NewAPIFetcher(cfg)
	i.fetchers[core.IngestMethodReddit] = NewRedditFetcher(cfg)
	// Twitter sources are served through aggregator JSON endpoints.
	i.fetchers[core.IngestMethodTwitter] = NewAPIFetcher(cfg)
	return i
}

// RegisterFetcher overrides the fetcher for a method.
func (i *Ingestor) RegisterFetcher(method core.IngestMethod, f Fetcher) {
	i.fetchers[method] = f
}

// IngestSource fetches one source and records its items. A fetch failure
// increments the source's error counter; a successful run stamps
// last_fetched_at and resets it, even when every item was a duplicate.
func (i *Ingestor) IngestSource(ctx context.Context, source *core.Source) (*SourceResult, error) {
	fetcher, ok := i.fetchers[source.IngestMethod]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for method %q", source.IngestMethod)
	}

	items, err := i.fetchWithRetry(ctx, fetcher, source)
	if err != nil {
		if recErr := i.store.Sources().RecordFetchFailure(ctx, source.ID); recErr != nil {
			logger.Error("Failed to record fetch failure", recErr, "source_id", source.ID)
		}
		return nil, fmt.Errorf("fetch failed for source %d: %w", source.ID, err)
	}

	result := &SourceResult{SourceID: source.ID, Fetched: len(items)}
	for _, item := range items {
		raw, created, err := i.createRawItem(ctx, source, item)
		if err != nil {
			logger.Warn("Skipping unusable item", "source_id", source.ID,
				"url", item.URL, "error", err.Error())
			result.Skipped++
			continue
		}
		if created {
			result.Created++
			result.NewItemIDs = append(result.NewItemIDs, raw.ID)
		} else {
			result.Duplicates++
		}
	}

	if err := i.store.Sources().RecordFetchSuccess(ctx, source.ID, i.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record fetch success: %w", err)
	}
	if result.Created > 0 {
		if err := i.store.SiteMetrics().Increment(ctx, "raw_items_ingested", int64(result.Created)); err != nil {
			logger.Warn("Failed to bump raw_items_ingested", "error", err.Error())
		}
	}

	logger.Info("Ingested source", "source_id", source.ID, "name", source.Name,
		"fetched", result.Fetched, "created", result.Created,
		"duplicates", result.Duplicates, "skipped", result.Skipped)
	return result, nil
}

// fetchWithRetry retries transient fetch failures with exponential backoff.
func (i *Ingestor) fetchWithRetry(ctx context.Context, fetcher Fetcher, source *core.Source) ([]FetchedItem, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = i.cfg.RetryInitialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	var items []FetchedItem
	operation := func() error {
		var err error
		items, err = fetcher.Fetch(ctx, source)
		return err
	}
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, i.cfg.MaxFetchRetries), ctx))
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Package maintenance hosts the periodic cleanup tasks: raw item and
// validation log purging and feed cache expiry.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

// Config controls retention.
type Config struct {
	RetentionDays int // Raw items and validation logs older than this are purged
}

// DefaultConfig returns the standard retention settings.
func DefaultConfig() Config {
	return Config{RetentionDays: 30}
}

// PurgeResult reports what a purge run removed.
type PurgeResult struct {
	RawItemsDeleted       int64
	ValidationLogsDeleted int64
	ClustersDeleted       int64
}

// Maintainer runs cleanup tasks over the store.
type Maintainer struct {
	store persistence.Store
	cfg   Config
	now   func() time.Time
}

// NewMaintainer creates a maintainer.
func NewMaintainer(store persistence.Store, cfg Config) *Maintainer {
	return &Maintainer{store: store, cfg: cfg, now: time.Now}
}

// Purge removes raw items fetched before the retention cutoff, validation
// logs of the same age, and clusters not seen since the cutoff. Variants and
// link rows derived from purged rows are removed by the schema's cascade
// rules.
func (m *Maintainer) Purge(ctx context.Context) (*PurgeResult, error) {
	cutoff := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	rawDeleted, err := m.store.RawItems().DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge raw items: %w", err)
	}
	logsDeleted, err := m.store.ValidationLogs().DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge validation logs: %w", err)
	}
	clustersDeleted, err := m.store.Clusters().DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge clusters: %w", err)
	}

	if rawDeleted > 0 {
		if err := m.store.SiteMetrics().Increment(ctx, "raw_items_purged", rawDeleted); err != nil {
			logger.Warn("Failed to bump raw_items_purged", "error", err.Error())
		}
	}

	logger.Info("Purge complete", "cutoff", cutoff.Format(time.RFC3339),
		"raw_items", rawDeleted, "validation_logs", logsDeleted,
		"clusters", clustersDeleted)
	return &PurgeResult{
		RawItemsDeleted:       rawDeleted,
		ValidationLogsDeleted: logsDeleted,
		ClustersDeleted:       clustersDeleted,
	}, nil
}

// CleanFeedCache drops expired feed validator entries.
func (m *Maintainer) CleanFeedCache(ctx context.Context) (int64, error) {
	deleted, err := m.store.FeedCache().DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean feed cache: %w", err)
	}
	if deleted > 0 {
		logger.Debug("Feed cache cleaned", "deleted", deleted)
	}
	return deleted, nil
}

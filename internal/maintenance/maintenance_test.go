package maintenance

import (
	"context"
	"testing"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

func TestPurgeRemovesOldRowsAndCascades(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	old := &core.RawItem{
		SourceID:     1,
		CanonicalURL: "https://example.com/old",
		RawTitle:     "Old story",
		IngestHash:   "old-hash",
		FetchedAt:    now.AddDate(0, 0, -45),
	}
	if err := store.RawItems().Create(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := &core.RawItem{
		SourceID:     1,
		CanonicalURL: "https://example.com/fresh",
		RawTitle:     "Fresh story",
		IngestHash:   "fresh-hash",
		FetchedAt:    now.AddDate(0, 0, -5),
	}
	if err := store.RawItems().Create(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	// Variant and cluster link hanging off the old item.
	variant := &core.StoryVariant{
		RawItemID:   old.ID,
		SourceID:    1,
		URL:         old.CanonicalURL,
		Title:       old.RawTitle,
		PublishedAt: old.FetchedAt,
	}
	if err := store.Variants().Create(ctx, variant); err != nil {
		t.Fatal(err)
	}
	cluster := &core.Cluster{
		Headline:    old.RawTitle,
		Status:      core.ClusterStatusActive,
		FirstSeenAt: old.FetchedAt,
		LastSeenAt:  old.FetchedAt,
		SourceCount: 1,
	}
	if err := store.Clusters().Create(ctx, cluster); err != nil {
		t.Fatal(err)
	}
	if err := store.ClusterVariants().Link(ctx, &core.ClusterVariant{
		ClusterID: cluster.ID, VariantID: variant.ID, SimilarityScore: 1.0,
	}); err != nil {
		t.Fatal(err)
	}
	tag, err := store.Tags().GetOrCreate(ctx, "Game")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ClusterTags().Link(ctx, cluster.ID, tag.ID); err != nil {
		t.Fatal(err)
	}

	// A cluster still receiving stories stays regardless of its age.
	live := &core.Cluster{
		Headline:    fresh.RawTitle,
		Status:      core.ClusterStatusActive,
		FirstSeenAt: now.AddDate(0, 0, -45),
		LastSeenAt:  now.AddDate(0, 0, -5),
		SourceCount: 1,
	}
	if err := store.Clusters().Create(ctx, live); err != nil {
		t.Fatal(err)
	}

	// Validation logs, one per item, timestamps set by the store at insert
	// time, so only the raw item cutoff distinguishes them here.
	for _, id := range []int64{old.ID, fresh.ID} {
		if err := store.ValidationLogs().Create(ctx, &core.ValidationLog{
			RawItemID: id,
			Method:    core.ValidationMethodKeyword,
			Result:    core.ValidationResultApproved,
		}); err != nil {
			t.Fatal(err)
		}
	}

	m := NewMaintainer(store, DefaultConfig())
	result, err := m.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.RawItemsDeleted != 1 {
		t.Errorf("raw items deleted = %d, want 1", result.RawItemsDeleted)
	}
	if result.ClustersDeleted != 1 {
		t.Errorf("clusters deleted = %d, want 1", result.ClustersDeleted)
	}

	if _, err := store.RawItems().Get(ctx, old.ID); err != persistence.ErrNotFound {
		t.Errorf("old raw item should be gone, got err=%v", err)
	}
	if _, err := store.RawItems().Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh raw item should survive: %v", err)
	}
	if _, err := store.Variants().Get(ctx, variant.ID); err != persistence.ErrNotFound {
		t.Errorf("variant of purged item should cascade away, got err=%v", err)
	}
	if _, err := store.Clusters().Get(ctx, cluster.ID); err != persistence.ErrNotFound {
		t.Errorf("stale cluster should be gone, got err=%v", err)
	}
	links, err := store.ClusterVariants().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("links of purged cluster should cascade away, got %d", len(links))
	}
	tagLinks, err := store.ClusterTags().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tagLinks) != 0 {
		t.Errorf("tag links of purged cluster should cascade away, got %d", len(tagLinks))
	}
	if _, err := store.Clusters().Get(ctx, live.ID); err != nil {
		t.Errorf("recently seen cluster must survive the purge: %v", err)
	}

	if n, _ := store.SiteMetrics().Get(ctx, "raw_items_purged"); n != 1 {
		t.Errorf("raw_items_purged = %d, want 1", n)
	}
}

func TestCleanFeedCache(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for key, expires := range map[string]time.Time{
		"feed:expired": now.Add(-time.Hour),
		"feed:live":    now.Add(time.Hour),
	} {
		if err := store.FeedCache().Set(ctx, &core.FeedCacheEntry{
			CacheKey:  key,
			Payload:   map[string]any{"etag": "x"},
			ExpiresAt: expires,
		}); err != nil {
			t.Fatal(err)
		}
	}

	m := NewMaintainer(store, DefaultConfig())
	deleted, err := m.CleanFeedCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := store.FeedCache().Get(ctx, "feed:live"); err != nil {
		t.Errorf("live entry should survive: %v", err)
	}
	if _, err := store.FeedCache().Get(ctx, "feed:expired"); err != persistence.ErrNotFound {
		t.Errorf("expired entry should be gone, got err=%v", err)
	}
}

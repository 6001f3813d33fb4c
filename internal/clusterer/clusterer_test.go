package clusterer

import (
	"context"
	"testing"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

var baseTime = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

func newTestClusterer(t *testing.T) (*Clusterer, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	ctx := context.Background()

	// Roster: one player and the team itself.
	for _, e := range []core.Entity{
		{Name: "Macklin Celebrini", EntityType: "player"},
		{Name: "San Jose Sharks", EntityType: core.EntityTypeTeam},
		{Name: "William Eklund", EntityType: "player"},
	} {
		entity := e
		if err := store.Entities().Upsert(ctx, &entity); err != nil {
			t.Fatal(err)
		}
	}

	c := New(store, DefaultConfig())
	c.now = func() time.Time { return baseTime }
	return c, store
}

func seedVariant(t *testing.T, store *persistence.MemoryStore, v core.StoryVariant) *core.StoryVariant {
	t.Helper()
	if err := store.Variants().Create(context.Background(), &v); err != nil {
		t.Fatal(err)
	}
	return &v
}

func TestAssignCreatesClusterWhenNoCandidates(t *testing.T) {
	c, store := newTestClusterer(t)
	ctx := context.Background()

	variant := seedVariant(t, store, core.StoryVariant{
		RawItemID:    1,
		SourceID:     1,
		URL:          "https://example.com/celebrini-signs",
		Title:        "Sharks sign Celebrini to extension",
		PublishedAt:  baseTime.Add(-time.Hour),
		Tokens:       []string{"celebrini", "signs", "extension", "sharks"},
		Entities:     []int64{1, 2},
		EventType:    core.EventTypeSigning,
		SourceSignal: 3,
	})

	cluster, created, err := c.Assign(ctx, variant)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected a new cluster")
	}
	if cluster.Headline != variant.Title {
		t.Errorf("headline = %q, want seed title", cluster.Headline)
	}
	if cluster.SourceCount != 1 {
		t.Errorf("source_count = %d, want 1", cluster.SourceCount)
	}
	if !cluster.FirstSeenAt.Equal(variant.PublishedAt) || !cluster.LastSeenAt.Equal(variant.PublishedAt) {
		t.Errorf("seen bounds = %v..%v, want both %v", cluster.FirstSeenAt, cluster.LastSeenAt, variant.PublishedAt)
	}

	links, err := store.ClusterVariants().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].SimilarityScore != 1.0 {
		t.Errorf("seed link = %+v, want one link with score 1.0", links)
	}

	entityLinks, err := store.ClusterEntities().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entityLinks) != 2 {
		t.Errorf("expected 2 entity links, got %d", len(entityLinks))
	}
}

func TestAssignAttachesToSimilarCluster(t *testing.T) {
	c, store := newTestClusterer(t)
	ctx := context.Background()

	seed := seedVariant(t, store, core.StoryVariant{
		RawItemID:    1,
		SourceID:     1,
		URL:          "https://example.com/celebrini-extension",
		Title:        "Sharks sign Celebrini to eight-year extension",
		PublishedAt:  baseTime.Add(-2 * time.Hour),
		Tokens:       []string{"celebrini", "signs", "contract", "extension", "sharks"},
		Entities:     []int64{1, 2},
		EventType:    core.EventTypeSigning,
		SourceSignal: 3,
	})
	cluster, created, err := c.Assign(ctx, seed)
	if err != nil || !created {
		t.Fatalf("seed assign: created=%v err=%v", created, err)
	}

	followUp := seedVariant(t, store, core.StoryVariant{
		RawItemID:    2,
		SourceID:     2,
		URL:          "https://other.com/celebrini-deal",
		Title:        "Celebrini agrees to new Sharks contract",
		PublishedAt:  baseTime.Add(-time.Hour),
		Tokens:       []string{"celebrini", "contract", "extension", "deal", "sharks"},
		Entities:     []int64{1, 2},
		EventType:    core.EventTypeSigning,
		SourceSignal: 2,
	})

	got, created, err := c.Assign(ctx, followUp)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected attachment, got a new cluster")
	}
	if got.ID != cluster.ID {
		t.Fatalf("attached to cluster %d, want %d", got.ID, cluster.ID)
	}

	updated, err := store.Clusters().Get(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.SourceCount != 2 {
		t.Errorf("source_count = %d, want 2", updated.SourceCount)
	}
	if updated.Headline != seed.Title {
		t.Errorf("headline changed on attach: %q", updated.Headline)
	}
	if !updated.LastSeenAt.Equal(followUp.PublishedAt) {
		t.Errorf("last_seen_at = %v, want %v", updated.LastSeenAt, followUp.PublishedAt)
	}
	if !updated.FirstSeenAt.Equal(seed.PublishedAt) {
		t.Errorf("first_seen_at = %v, want %v", updated.FirstSeenAt, seed.PublishedAt)
	}
	if !containsToken(updated.Tokens, "deal") {
		t.Errorf("token union missing new token: %v", updated.Tokens)
	}

	links, err := store.ClusterVariants().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 membership rows, got %d", len(links))
	}
	attachScore := links[1].SimilarityScore
	if attachScore < 0.62 || attachScore >= 1.0 {
		t.Errorf("attach similarity = %v, want in [0.62, 1.0)", attachScore)
	}
}

func TestAssignCreatesNewClusterForUnrelatedStory(t *testing.T) {
	c, store := newTestClusterer(t)
	ctx := context.Background()

	seed := seedVariant(t, store, core.StoryVariant{
		RawItemID:   1,
		SourceID:    1,
		URL:         "https://example.com/celebrini-extension",
		Title:       "Sharks sign Celebrini to extension",
		PublishedAt: baseTime.Add(-2 * time.Hour),
		Tokens:      []string{"celebrini", "signs", "extension", "sharks"},
		Entities:    []int64{1, 2},
		EventType:   core.EventTypeSigning,
	})
	if _, _, err := c.Assign(ctx, seed); err != nil {
		t.Fatal(err)
	}

	unrelated := seedVariant(t, store, core.StoryVariant{
		RawItemID:   2,
		SourceID:    2,
		URL:         "https://other.com/eklund-injured",
		Title:       "Eklund out week to week with injury",
		PublishedAt: baseTime.Add(-time.Hour),
		Tokens:      []string{"eklund", "week", "injury", "sharks"},
		Entities:    []int64{3, 2},
		EventType:   core.EventTypeInjury,
	})

	_, created, err := c.Assign(ctx, unrelated)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("unrelated story must seed its own cluster")
	}
}

func TestAssignIgnoresClustersOutsideWindow(t *testing.T) {
	c, store := newTestClusterer(t)
	ctx := context.Background()

	old := seedVariant(t, store, core.StoryVariant{
		RawItemID:   1,
		SourceID:    1,
		URL:         "https://example.com/old-celebrini",
		Title:       "Sharks sign Celebrini",
		PublishedAt: baseTime.Add(-80 * time.Hour),
		Tokens:      []string{"celebrini", "signs", "extension", "sharks"},
		Entities:    []int64{1, 2},
		EventType:   core.EventTypeSigning,
	})
	if _, _, err := c.Assign(ctx, old); err != nil {
		t.Fatal(err)
	}

	fresh := seedVariant(t, store, core.StoryVariant{
		RawItemID:   2,
		SourceID:    2,
		URL:         "https://other.com/new-celebrini",
		Title:       "Celebrini signs extension with Sharks",
		PublishedAt: baseTime.Add(-time.Hour),
		Tokens:      []string{"celebrini", "signs", "extension", "sharks"},
		Entities:    []int64{1, 2},
		EventType:   core.EventTypeSigning,
	})

	_, created, err := c.Assign(ctx, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("cluster older than the candidate window must not attract new variants")
	}
}

func TestMergeFoldsClustersIntoTarget(t *testing.T) {
	c, store := newTestClusterer(t)
	ctx := context.Background()

	v1 := seedVariant(t, store, core.StoryVariant{
		RawItemID:   1,
		SourceID:    1,
		URL:         "https://a.com/story",
		Title:       "Sharks sign Celebrini to extension",
		PublishedAt: baseTime.Add(-3 * time.Hour),
		Tokens:      []string{"celebrini", "signs", "extension"},
		Entities:    []int64{1, 2},
		EventType:   core.EventTypeSigning,
	})
	target, _, err := c.Assign(ctx, v1)
	if err != nil {
		t.Fatal(err)
	}
	v2 := seedVariant(t, store, core.StoryVariant{
		RawItemID:   2,
		SourceID:    2,
		URL:         "https://b.com/story",
		Title:       "Celebrini extension official",
		PublishedAt: baseTime.Add(-2 * time.Hour),
		Tokens:      []string{"celebrini", "extension", "official"},
		Entities:    []int64{1, 2},
		EventType:   core.EventTypeSigning,
	})
	if _, created, err := c.Assign(ctx, v2); err != nil || created {
		t.Fatalf("second variant should attach to target: created=%v err=%v", created, err)
	}

	// A duplicate story that slipped into its own cluster, seen later.
	v3 := seedVariant(t, store, core.StoryVariant{
		RawItemID:   3,
		SourceID:    3,
		URL:         "https://c.com/story",
		Title:       "Report: Celebrini deal done",
		PublishedAt: baseTime.Add(-time.Hour),
		Tokens:      []string{"celebrini", "deal", "report"},
		Entities:    []int64{1},
		EventType:   core.EventTypeOther,
	})
	stray := &core.Cluster{
		Headline:    v3.Title,
		EventType:   v3.EventType,
		Status:      core.ClusterStatusActive,
		FirstSeenAt: v3.PublishedAt,
		LastSeenAt:  v3.PublishedAt,
		Tokens:      v3.Tokens,
		EntitiesAgg: v3.Entities,
		SourceCount: 1,
	}
	if err := store.Clusters().Create(ctx, stray); err != nil {
		t.Fatal(err)
	}
	if err := store.ClusterVariants().Link(ctx, &core.ClusterVariant{
		ClusterID: stray.ID, VariantID: v3.ID, SimilarityScore: 1.0,
	}); err != nil {
		t.Fatal(err)
	}

	merged, err := c.Merge(ctx, []int64{target.ID, stray.ID})
	if err != nil {
		t.Fatal(err)
	}
	if merged.ID != target.ID {
		t.Fatalf("merge target = %d, want %d", merged.ID, target.ID)
	}
	if merged.SourceCount != 3 {
		t.Errorf("source_count = %d, want 3", merged.SourceCount)
	}
	if !merged.FirstSeenAt.Equal(v1.PublishedAt) {
		t.Errorf("first_seen_at = %v, want %v", merged.FirstSeenAt, v1.PublishedAt)
	}
	if !merged.LastSeenAt.Equal(v3.PublishedAt) {
		t.Errorf("last_seen_at = %v, want %v", merged.LastSeenAt, v3.PublishedAt)
	}
	if !containsToken(merged.Tokens, "report") || !containsToken(merged.Tokens, "official") {
		t.Errorf("token union incomplete: %v", merged.Tokens)
	}

	if _, err := store.Clusters().Get(ctx, stray.ID); err != persistence.ErrNotFound {
		t.Errorf("absorbed cluster should be deleted, got err=%v", err)
	}
	links, err := store.ClusterVariants().ListByCluster(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Errorf("expected 3 repointed membership rows, got %d", len(links))
	}
}

func TestMergeRejectsSingleCluster(t *testing.T) {
	c, _ := newTestClusterer(t)
	if _, err := c.Merge(context.Background(), []int64{1}); err == nil {
		t.Error("merging fewer than two clusters should fail")
	}
}

func TestTokenJaccard(t *testing.T) {
	cases := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 1.0},
		{[]string{"a", "b"}, []string{"c", "d"}, 0.0},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d"}, 0.5},
		{nil, nil, 0.0},
	}
	for _, tc := range cases {
		if got := tokenJaccard(tc.a, tc.b); got != tc.want {
			t.Errorf("tokenJaccard(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestKindCompatibility(t *testing.T) {
	if got := kindCompatibility(core.EventTypeTrade, core.EventTypeTrade); got != 1.0 {
		t.Errorf("same type = %v, want 1.0", got)
	}
	if got := kindCompatibility(core.EventTypeTrade, core.EventTypeSigning); got != 0.5 {
		t.Errorf("trade/signing = %v, want 0.5", got)
	}
	if got := kindCompatibility(core.EventTypeGame, core.EventTypeLineup); got != 0.5 {
		t.Errorf("game/lineup = %v, want 0.5", got)
	}
	if got := kindCompatibility(core.EventTypeTrade, core.EventTypeGame); got != 0.0 {
		t.Errorf("trade/game = %v, want 0.0", got)
	}
}

func containsToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

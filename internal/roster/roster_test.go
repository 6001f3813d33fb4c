package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

// Section markers match the upstream page, which wraps them as >dead cap<
// and >non-roster<.
const markedRosterPage = `<html><body>
<div>active</div>
<a href="/players/macklin-celebrini">Celebrini, Macklin</a>
<a href="/players/william-eklund">Eklund, William</a>
<div id="a">dead cap</div>
<a href="/players/erik-karlsson">Karlsson, Erik</a>
<div id="b">non-roster</div>
<a href="/players/quentin-musty">Musty, Quentin</a>
<span value="Dickinson, Sam"></span>
</body></html>`

func TestParseRoster(t *testing.T) {
	names, err := parseRoster(markedRosterPage)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Macklin Celebrini", "William Eklund", "Quentin Musty", "Sam Dickinson"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("parseRoster = %v, want %v", names, want)
	}
}

func TestParseRosterSkipsDeadCap(t *testing.T) {
	names, err := parseRoster(markedRosterPage)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if n == "Erik Karlsson" {
			t.Error("dead-cap player must be excluded")
		}
	}
}

func TestParseRosterMissingMarkers(t *testing.T) {
	if _, err := parseRoster("<html><body>nothing here</body></html>"); err == nil {
		t.Error("expected error when section markers are absent")
	}
}

func TestParsePlayerName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Celebrini, Macklin", "Macklin Celebrini"},
		{"  Eklund ,  William ", "William Eklund"},
		{"Mononym", "Mononym"},
		{", ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parsePlayerName(tc.in); got != tc.want {
			t.Errorf("parsePlayerName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSyncUpsertsAndRemovesDeparted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(markedRosterPage))
	}))
	defer server.Close()

	store := persistence.NewMemoryStore()
	ctx := context.Background()

	// A player traded away before this sync, already linked to a cluster.
	departed := &core.Entity{Name: "Tomas Hertl", EntityType: "player"}
	if err := store.Entities().Upsert(ctx, departed); err != nil {
		t.Fatal(err)
	}
	cluster := &core.Cluster{Headline: "Hertl traded", Status: core.ClusterStatusActive}
	if err := store.Clusters().Create(ctx, cluster); err != nil {
		t.Fatal(err)
	}
	if err := store.ClusterEntities().Link(ctx, cluster.ID, departed.ID); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.URL = server.URL
	syncer := NewSyncer(store, cfg)

	result, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Synced != 4 {
		t.Errorf("synced = %d, want 4", result.Synced)
	}
	if result.Removed != 1 {
		t.Errorf("removed = %d, want 1", result.Removed)
	}

	if _, err := store.Entities().GetBySlug(ctx, "macklin-celebrini"); err != nil {
		t.Errorf("current player missing: %v", err)
	}
	if _, err := store.Entities().GetBySlug(ctx, "tomas-hertl"); err != persistence.ErrNotFound {
		t.Errorf("departed player should be deleted, got err=%v", err)
	}
	links, err := store.ClusterEntities().ListByCluster(ctx, cluster.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("departed player's cluster links should be gone, got %d", len(links))
	}

	if _, err := store.Entities().GetBySlug(ctx, "san-jose-sharks"); err != nil {
		t.Errorf("team entity not ensured: %v", err)
	}

	// Second sync is idempotent.
	again, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.Removed != 0 {
		t.Errorf("second sync removed %d, want 0", again.Removed)
	}
}

// Package roster keeps the player entity table in sync with the upstream
// team roster page. Departed players are removed so old names stop matching
// new stories.
package roster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

// Config controls the roster sync.
type Config struct {
	URL            string // Upstream roster page
	TeamName       string // Team entity, always kept
	UserAgent      string
	RequestTimeout time.Duration
}

// DefaultConfig returns the standard roster settings.
func DefaultConfig() Config {
	return Config{
		URL:            "https://capwages.com/teams/san_jose_sharks",
		TeamName:       "San Jose Sharks",
		UserAgent:      "sharkwire/1.0 (+news aggregator)",
		RequestTimeout: 30 * time.Second,
	}
}

// SyncResult summarizes one roster sync run.
type SyncResult struct {
	Synced  int // Players upserted
	Removed int // Departed players deleted
}

// Syncer fetches and applies the roster.
type Syncer struct {
	store  persistence.Store
	cfg    Config
	client *http.Client
}

// NewSyncer creates a roster syncer over the store.
func NewSyncer(store persistence.Store, cfg Config) *Syncer {
	return &Syncer{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Sync fetches the roster page, upserts current players, and removes player
// entities no longer in the organization along with their cluster links. The
// team entity is ensured as well.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	html, err := s.fetchPage(ctx)
	if err != nil {
		return nil, err
	}
	names, err := parseRoster(html)
	if err != nil {
		return nil, err
	}

	if err := s.store.Entities().Upsert(ctx, &core.Entity{
		Name:       s.cfg.TeamName,
		EntityType: core.EntityTypeTeam,
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert team entity: %w", err)
	}

	current := make(map[string]bool, len(names))
	result := &SyncResult{}
	for _, name := range names {
		entity := &core.Entity{
			Name:       name,
			EntityType: "player",
			Metadata:   map[string]any{"status": "active"},
		}
		if err := s.store.Entities().Upsert(ctx, entity); err != nil {
			logger.Warn("Failed to upsert player", "name", name, "error", err.Error())
			continue
		}
		current[core.MakeSlug(name)] = true
		result.Synced++
	}
	if result.Synced == 0 {
		return nil, fmt.Errorf("roster page yielded no players, refusing to remove everyone")
	}

	removed, err := s.removeDeparted(ctx, current)
	if err != nil {
		return nil, err
	}
	result.Removed = removed

	logger.Info("Roster sync complete", "synced", result.Synced, "removed", result.Removed)
	return result, nil
}

func (s *Syncer) fetchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch roster page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("roster page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read roster page: %w", err)
	}
	return string(body), nil
}

// removeDeparted deletes player entities missing from the current roster,
// clearing their cluster links first.
func (s *Syncer) removeDeparted(ctx context.Context, current map[string]bool) (int, error) {
	players, err := s.store.Entities().ListByType(ctx, "player")
	if err != nil {
		return 0, fmt.Errorf("failed to list player entities: %w", err)
	}
	removed := 0
	for _, player := range players {
		if current[player.Slug] {
			continue
		}
		if _, err := s.store.ClusterEntities().DeleteByEntity(ctx, player.ID); err != nil {
			return removed, fmt.Errorf("failed to unlink departed player %q: %w", player.Name, err)
		}
		if err := s.store.Entities().Delete(ctx, player.ID); err != nil {
			return removed, fmt.Errorf("failed to delete departed player %q: %w", player.Name, err)
		}
		logger.Info("Removed departed player", "name", player.Name)
		removed++
	}
	return removed, nil
}

var (
	// Player rows link to player pages: <a href="/players/slug">Last, First</a>
	playerLinkRe = regexp.MustCompile(`<a[^>]*href="/players/[^"]*"[^>]*>([^<]+)</a>`)
	// The reserve list (unsigned draft picks) uses value attributes instead.
	reserveSpanRe = regexp.MustCompile(`<span[^>]*value="([^"]+)"[^>]*>`)
)

// parseRoster extracts player names from the roster page. The page lists the
// active roster, a dead-cap section (players paid but gone, skipped), and a
// non-roster section (AHL and prospects, kept).
func parseRoster(html string) ([]string, error) {
	deadCapPos := strings.Index(html, ">dead cap<")
	nonRosterPos := strings.Index(html, ">non-roster<")
	if deadCapPos == -1 || nonRosterPos == -1 {
		return nil, fmt.Errorf("roster page missing expected section markers")
	}

	var rawNames []string
	for _, m := range playerLinkRe.FindAllStringSubmatch(html[:deadCapPos], -1) {
		rawNames = append(rawNames, m[1])
	}
	nonRoster := html[nonRosterPos:]
	for _, m := range playerLinkRe.FindAllStringSubmatch(nonRoster, -1) {
		rawNames = append(rawNames, m[1])
	}
	for _, m := range reserveSpanRe.FindAllStringSubmatch(nonRoster, -1) {
		rawNames = append(rawNames, m[1])
	}

	seen := make(map[string]bool)
	var names []string
	for _, raw := range rawNames {
		name := parsePlayerName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// parsePlayerName converts "Last, First" to "First Last". Names without a
// comma pass through unchanged.
func parsePlayerName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	last, first, found := strings.Cut(raw, ",")
	if !found {
		return raw
	}
	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	if last == "" || first == "" {
		return ""
	}
	return first + " " + last
}

// Package clusterer groups story variants describing the same real-world
// event using entity overlap, token similarity, and event-type compatibility.
package clusterer

import (
	"context"
	"fmt"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

// scoreEpsilon keeps attachment deterministic: a candidate must beat the
// current best by more than this to take over.
const scoreEpsilon = 0.000001

// Score component weights.
const (
	entityWeight = 0.55
	tokenWeight  = 0.35
	kindWeight   = 0.10
)

// Config carries the clustering thresholds and candidate windows.
type Config struct {
	TimeWindowHours          int     // Default candidate window
	GameWindowHours          int     // Game stories cluster tighter in time
	OpinionWindowHours       int     // Opinion pieces tighter still
	SimilarityThreshold      float64 // Score gate
	EntityOverlapThreshold   float64 // Entity gate when the variant has non-team entities
	TokenSimilarityThreshold float64 // Token gate when it has none
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TimeWindowHours:          72,
		GameWindowHours:          24,
		OpinionWindowHours:       12,
		SimilarityThreshold:      0.62,
		EntityOverlapThreshold:   0.50,
		TokenSimilarityThreshold: 0.40,
	}
}

// Clusterer assigns variants to clusters.
type Clusterer struct {
	store persistence.Store
	cfg   Config
	now   func() time.Time
}

// New creates a clusterer over the given store.
func New(store persistence.Store, cfg Config) *Clusterer {
	return &Clusterer{store: store, cfg: cfg, now: time.Now}
}

// Assign attaches the variant to the best matching active cluster or creates
// a new one. It returns the cluster and whether it was created.
func (c *Clusterer) Assign(ctx context.Context, variant *core.StoryVariant) (*core.Cluster, bool, error) {
	teamIDs, err := c.teamEntityIDs(ctx)
	if err != nil {
		return nil, false, err
	}

	cutoff := c.now().Add(-c.candidateWindow(variant.EventType))
	candidates, err := c.store.Clusters().ListActiveSince(ctx, cutoff)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list candidate clusters: %w", err)
	}

	variantNonTeam := nonTeamSet(variant.Entities, teamIDs)

	var best *core.Cluster
	bestScore := 0.0
	for i := range candidates {
		cand := &candidates[i]
		score, ok := c.score(variant, variantNonTeam, cand, teamIDs)
		if !ok {
			continue
		}
		if score > bestScore+scoreEpsilon {
			best = cand
			bestScore = score
		}
	}

	if best != nil {
		if err := c.attach(ctx, best, variant, bestScore); err != nil {
			return nil, false, err
		}
		logger.Debug("Attached variant to cluster",
			"variant_id", variant.ID, "cluster_id", best.ID, "score", bestScore)
		return best, false, nil
	}

	cluster, err := c.create(ctx, variant)
	if err != nil {
		return nil, false, err
	}
	logger.Debug("Created cluster for variant", "variant_id", variant.ID, "cluster_id", cluster.ID)
	return cluster, true, nil
}

// score computes the composite similarity of variant vs cluster and applies
// the entity/token and score gates. ok is false when a gate fails.
func (c *Clusterer) score(variant *core.StoryVariant, variantNonTeam map[int64]bool, cluster *core.Cluster, teamIDs map[int64]bool) (float64, bool) {
	clusterNonTeam := nonTeamSet(cluster.EntitiesAgg, teamIDs)

	e := entityOverlap(variantNonTeam, clusterNonTeam)
	t := tokenJaccard(variant.Tokens, cluster.Tokens)
	k := kindCompatibility(variant.EventType, cluster.EventType)
	s := entityWeight*e + tokenWeight*t + kindWeight*k

	if len(variantNonTeam) > 0 {
		if e < c.cfg.EntityOverlapThreshold {
			return 0, false
		}
	} else if t < c.cfg.TokenSimilarityThreshold {
		return 0, false
	}
	if s < c.cfg.SimilarityThreshold {
		return 0, false
	}
	return s, true
}

// attach links the variant into the cluster and refreshes the aggregates.
// The headline is never overwritten; the seed title stays.
func (c *Clusterer) attach(ctx context.Context, cluster *core.Cluster, variant *core.StoryVariant, score float64) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.ClusterVariants().Link(ctx, &core.ClusterVariant{
		ClusterID:       cluster.ID,
		VariantID:       variant.ID,
		SimilarityScore: score,
	}); err != nil {
		return err
	}

	cluster.Tokens = unionStrings(cluster.Tokens, variant.Tokens)
	cluster.EntitiesAgg = unionInt64s(cluster.EntitiesAgg, variant.Entities)
	if variant.PublishedAt.Before(cluster.FirstSeenAt) {
		cluster.FirstSeenAt = variant.PublishedAt
	}
	if variant.PublishedAt.After(cluster.LastSeenAt) {
		cluster.LastSeenAt = variant.PublishedAt
	}

	links, err := tx.ClusterVariants().ListByCluster(ctx, cluster.ID)
	if err != nil {
		return err
	}
	cluster.SourceCount = len(links)

	if err := tx.Clusters().Update(ctx, cluster); err != nil {
		return err
	}

	for _, entityID := range variant.Entities {
		if err := tx.ClusterEntities().Link(ctx, cluster.ID, entityID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// create seeds a new cluster from the variant.
func (c *Clusterer) create(ctx context.Context, variant *core.StoryVariant) (*core.Cluster, error) {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cluster := &core.Cluster{
		Headline:             variant.Title,
		HeadlineSourceSignal: variant.SourceSignal,
		EventType:            variant.EventType,
		Status:               core.ClusterStatusActive,
		FirstSeenAt:          variant.PublishedAt,
		LastSeenAt:           variant.PublishedAt,
		Tokens:               append([]string(nil), variant.Tokens...),
		EntitiesAgg:          append([]int64(nil), variant.Entities...),
		SourceCount:          1,
	}
	if err := tx.Clusters().Create(ctx, cluster); err != nil {
		return nil, err
	}

	if err := tx.ClusterVariants().Link(ctx, &core.ClusterVariant{
		ClusterID:       cluster.ID,
		VariantID:       variant.ID,
		SimilarityScore: 1.0,
	}); err != nil {
		return nil, err
	}

	for _, entityID := range variant.Entities {
		if err := tx.ClusterEntities().Link(ctx, cluster.ID, entityID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cluster, nil
}

// candidateWindow returns how far back candidate clusters are considered.
func (c *Clusterer) candidateWindow(eventType core.EventType) time.Duration {
	hours := c.cfg.TimeWindowHours
	switch eventType {
	case core.EventTypeGame:
		hours = c.cfg.GameWindowHours
	case core.EventTypeOpinion:
		hours = c.cfg.OpinionWindowHours
	}
	return time.Duration(hours) * time.Hour
}

func (c *Clusterer) teamEntityIDs(ctx context.Context) (map[int64]bool, error) {
	teams, err := c.store.Entities().ListByType(ctx, core.EntityTypeTeam)
	if err != nil {
		return nil, fmt.Errorf("failed to load team entities: %w", err)
	}
	ids := make(map[int64]bool, len(teams))
	for _, t := range teams {
		ids[t.ID] = true
	}
	return ids, nil
}

// nonTeamSet filters entity IDs down to non-team entities.
func nonTeamSet(ids []int64, teamIDs map[int64]bool) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !teamIDs[id] {
			set[id] = true
		}
	}
	return set
}

// entityOverlap is |a∩b| / max(|a|,|b|) over non-team entity sets. Either
// side empty scores zero.
func entityOverlap(a, b map[int64]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for id := range a {
		if b[id] {
			inter++
		}
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(inter) / float64(max)
}

// tokenJaccard is |a∩b| / max(1, |a∪b|).
func tokenJaccard(a, b []string) float64 {
	as := make(map[string]bool, len(a))
	for _, tok := range a {
		as[tok] = true
	}
	bs := make(map[string]bool, len(b))
	for _, tok := range b {
		bs[tok] = true
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

// kindCompatibility scores event-type affinity: identical types 1.0, related
// types 0.5, otherwise 0.
func kindCompatibility(a, b core.EventType) float64 {
	if a == b {
		return 1.0
	}
	if relatedEvents(a, b) {
		return 0.5
	}
	return 0
}

func relatedEvents(a, b core.EventType) bool {
	pair := func(x, y core.EventType) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(core.EventTypeTrade, core.EventTypeSigning) ||
		pair(core.EventTypeLineup, core.EventTypeGame) ||
		pair(core.EventTypeLineup, core.EventTypeRecall)
}

// unionStrings appends elements of extra missing from base, preserving order.
func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// unionInt64s appends elements of extra missing from base, preserving order.
func unionInt64s(base, extra []int64) []int64 {
	seen := make(map[int64]bool, len(base))
	out := append([]int64(nil), base...)
	for _, v := range base {
		seen[v] = true
	}
	for _, v := range extra {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

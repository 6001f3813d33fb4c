package clusterer

import (
	"context"
	"fmt"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

// Merge folds the clusters identified by ids into the first one. Membership,
// tag, and entity links are repointed, aggregates are unioned, seen bounds
// take the min/max across all members, and the absorbed clusters are deleted.
func (c *Clusterer) Merge(ctx context.Context, ids []int64) (*core.Cluster, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("merge requires at least two cluster ids, got %d", len(ids))
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := tx.Clusters().Get(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load merge target %d: %w", ids[0], err)
	}

	for _, id := range ids[1:] {
		source, err := tx.Clusters().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster %d: %w", id, err)
		}
		if err := c.absorb(ctx, tx, target, source); err != nil {
			return nil, err
		}
	}

	links, err := tx.ClusterVariants().ListByCluster(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	target.SourceCount = len(links)

	if err := tx.Clusters().Update(ctx, target); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.Info("Merged clusters", "target_id", target.ID, "merged", len(ids)-1,
		"source_count", target.SourceCount)
	return target, nil
}

// absorb moves one cluster's links and aggregates into the target, then
// deletes it. A variant already present in the target is dropped, not
// duplicated.
func (c *Clusterer) absorb(ctx context.Context, tx persistence.Transaction, target, source *core.Cluster) error {
	links, err := tx.ClusterVariants().ListByCluster(ctx, source.ID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := tx.ClusterVariants().Link(ctx, &core.ClusterVariant{
			ClusterID:       target.ID,
			VariantID:       link.VariantID,
			SimilarityScore: link.SimilarityScore,
		}); err != nil {
			return err
		}
	}

	tagLinks, err := tx.ClusterTags().ListByCluster(ctx, source.ID)
	if err != nil {
		return err
	}
	for _, tl := range tagLinks {
		if err := tx.ClusterTags().Link(ctx, target.ID, tl.TagID); err != nil {
			return err
		}
	}

	entityLinks, err := tx.ClusterEntities().ListByCluster(ctx, source.ID)
	if err != nil {
		return err
	}
	for _, el := range entityLinks {
		if err := tx.ClusterEntities().Link(ctx, target.ID, el.EntityID); err != nil {
			return err
		}
	}

	target.Tokens = unionStrings(target.Tokens, source.Tokens)
	target.EntitiesAgg = unionInt64s(target.EntitiesAgg, source.EntitiesAgg)
	if source.FirstSeenAt.Before(target.FirstSeenAt) {
		target.FirstSeenAt = source.FirstSeenAt
	}
	if source.LastSeenAt.After(target.LastSeenAt) {
		target.LastSeenAt = source.LastSeenAt
	}
	target.ClickCount += source.ClickCount

	if err := tx.Clusters().Delete(ctx, source.ID); err != nil {
		return fmt.Errorf("failed to delete absorbed cluster %d: %w", source.ID, err)
	}
	return nil
}

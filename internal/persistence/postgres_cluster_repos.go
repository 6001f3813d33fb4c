package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sharkwire/internal/core"
)

// postgresVariantRepo implements StoryVariantRepository for PostgreSQL
type postgresVariantRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresVariantRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const variantColumns = `id, raw_item_id, source_id, url, title, content_type,
	published_at, tokens, entities, event_type, source_signal, status, created_at`

func (r *postgresVariantRepo) Create(ctx context.Context, variant *core.StoryVariant) error {
	query := `
		INSERT INTO story_variants (
			raw_item_id, source_id, url, title, content_type, published_at,
			tokens, entities, event_type, source_signal, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := r.query().QueryRowContext(ctx, query,
		variant.RawItemID, variant.SourceID, variant.URL, variant.Title,
		variant.ContentType, variant.PublishedAt, pq.Array(variant.Tokens),
		pq.Array(variant.Entities), variant.EventType, variant.SourceSignal,
		variant.Status,
	).Scan(&variant.ID, &variant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert story variant: %w", translateError(err))
	}
	return nil
}

func (r *postgresVariantRepo) Get(ctx context.Context, id int64) (*core.StoryVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM story_variants WHERE id = $1`
	return r.scanVariant(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresVariantRepo) GetByURL(ctx context.Context, url string) (*core.StoryVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM story_variants WHERE url = $1`
	return r.scanVariant(r.query().QueryRowContext(ctx, query, url))
}

func (r *postgresVariantRepo) GetByRawItem(ctx context.Context, rawItemID int64) (*core.StoryVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM story_variants WHERE raw_item_id = $1`
	return r.scanVariant(r.query().QueryRowContext(ctx, query, rawItemID))
}

func (r *postgresVariantRepo) Update(ctx context.Context, variant *core.StoryVariant) error {
	query := `
		UPDATE story_variants SET
			url = $2, title = $3, content_type = $4, published_at = $5,
			tokens = $6, entities = $7, event_type = $8, source_signal = $9,
			status = $10
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query,
		variant.ID, variant.URL, variant.Title, variant.ContentType,
		variant.PublishedAt, pq.Array(variant.Tokens), pq.Array(variant.Entities),
		variant.EventType, variant.SourceSignal, variant.Status,
	)
	return translateError(err)
}

func (r *postgresVariantRepo) ListByCluster(ctx context.Context, clusterID int64) ([]core.StoryVariant, error) {
	query := `
		SELECT v.id, v.raw_item_id, v.source_id, v.url, v.title, v.content_type,
			   v.published_at, v.tokens, v.entities, v.event_type, v.source_signal,
			   v.status, v.created_at
		FROM story_variants v
		JOIN cluster_variants cv ON cv.variant_id = v.id
		WHERE cv.cluster_id = $1
		ORDER BY v.published_at ASC
	`
	rows, err := r.query().QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []core.StoryVariant
	for rows.Next() {
		var v core.StoryVariant
		err := rows.Scan(
			&v.ID, &v.RawItemID, &v.SourceID, &v.URL, &v.Title, &v.ContentType,
			&v.PublishedAt, pq.Array(&v.Tokens), pq.Array(&v.Entities),
			&v.EventType, &v.SourceSignal, &v.Status, &v.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *postgresVariantRepo) scanVariant(row *sql.Row) (*core.StoryVariant, error) {
	var v core.StoryVariant
	err := row.Scan(
		&v.ID, &v.RawItemID, &v.SourceID, &v.URL, &v.Title, &v.ContentType,
		&v.PublishedAt, pq.Array(&v.Tokens), pq.Array(&v.Entities),
		&v.EventType, &v.SourceSignal, &v.Status, &v.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &v, nil
}

// postgresClusterRepo implements ClusterRepository for PostgreSQL
type postgresClusterRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresClusterRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const clusterColumns = `id, headline, headline_source_signal, event_type, status,
	first_seen_at, last_seen_at, tokens, entities_agg, source_count, click_count,
	created_at, updated_at`

func (r *postgresClusterRepo) Create(ctx context.Context, cluster *core.Cluster) error {
	query := `
		INSERT INTO clusters (
			headline, headline_source_signal, event_type, status,
			first_seen_at, last_seen_at, tokens, entities_agg, source_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.query().QueryRowContext(ctx, query,
		cluster.Headline, cluster.HeadlineSourceSignal, cluster.EventType,
		cluster.Status, cluster.FirstSeenAt, cluster.LastSeenAt,
		pq.Array(cluster.Tokens), pq.Array(cluster.EntitiesAgg),
		cluster.SourceCount,
	).Scan(&cluster.ID, &cluster.CreatedAt, &cluster.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

func (r *postgresClusterRepo) Get(ctx context.Context, id int64) (*core.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE id = $1`
	return r.scanCluster(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresClusterRepo) Update(ctx context.Context, cluster *core.Cluster) error {
	query := `
		UPDATE clusters SET
			headline = $2, headline_source_signal = $3, event_type = $4,
			status = $5, first_seen_at = $6, last_seen_at = $7, tokens = $8,
			entities_agg = $9, source_count = $10, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query,
		cluster.ID, cluster.Headline, cluster.HeadlineSourceSignal,
		cluster.EventType, cluster.Status, cluster.FirstSeenAt,
		cluster.LastSeenAt, pq.Array(cluster.Tokens),
		pq.Array(cluster.EntitiesAgg), cluster.SourceCount,
	)
	return err
}

func (r *postgresClusterRepo) ListActiveSince(ctx context.Context, cutoff time.Time) ([]core.Cluster, error) {
	query := `
		SELECT ` + clusterColumns + `
		FROM clusters
		WHERE status = 'active' AND first_seen_at >= $1
		ORDER BY first_seen_at DESC
	`
	rows, err := r.query().QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []core.Cluster
	for rows.Next() {
		var c core.Cluster
		err := rows.Scan(
			&c.ID, &c.Headline, &c.HeadlineSourceSignal, &c.EventType, &c.Status,
			&c.FirstSeenAt, &c.LastSeenAt, pq.Array(&c.Tokens),
			pq.Array(&c.EntitiesAgg), &c.SourceCount, &c.ClickCount,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

func (r *postgresClusterRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM clusters WHERE id = $1`
	_, err := r.query().ExecContext(ctx, query, id)
	return err
}

func (r *postgresClusterRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM clusters WHERE last_seen_at < $1`
	result, err := r.query().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postgresClusterRepo) scanCluster(row *sql.Row) (*core.Cluster, error) {
	var c core.Cluster
	err := row.Scan(
		&c.ID, &c.Headline, &c.HeadlineSourceSignal, &c.EventType, &c.Status,
		&c.FirstSeenAt, &c.LastSeenAt, pq.Array(&c.Tokens),
		pq.Array(&c.EntitiesAgg), &c.SourceCount, &c.ClickCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

// postgresClusterVariantRepo implements ClusterVariantRepository for PostgreSQL
type postgresClusterVariantRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresClusterVariantRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresClusterVariantRepo) Link(ctx context.Context, link *core.ClusterVariant) error {
	query := `
		INSERT INTO cluster_variants (cluster_id, variant_id, similarity_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (cluster_id, variant_id) DO NOTHING
	`
	_, err := r.query().ExecContext(ctx, query, link.ClusterID, link.VariantID, link.SimilarityScore)
	if err != nil {
		return fmt.Errorf("failed to link variant to cluster: %w", err)
	}
	return nil
}

func (r *postgresClusterVariantRepo) ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterVariant, error) {
	query := `
		SELECT id, cluster_id, variant_id, similarity_score, created_at
		FROM cluster_variants
		WHERE cluster_id = $1
		ORDER BY id
	`
	rows, err := r.query().QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []core.ClusterVariant
	for rows.Next() {
		var l core.ClusterVariant
		if err := rows.Scan(&l.ID, &l.ClusterID, &l.VariantID, &l.SimilarityScore, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *postgresClusterVariantRepo) GetByVariant(ctx context.Context, variantID int64) (*core.ClusterVariant, error) {
	query := `
		SELECT id, cluster_id, variant_id, similarity_score, created_at
		FROM cluster_variants
		WHERE variant_id = $1
	`
	var l core.ClusterVariant
	err := r.query().QueryRowContext(ctx, query, variantID).
		Scan(&l.ID, &l.ClusterID, &l.VariantID, &l.SimilarityScore, &l.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &l, nil
}

func (r *postgresClusterVariantRepo) DeleteByCluster(ctx context.Context, clusterID int64) (int64, error) {
	query := `DELETE FROM cluster_variants WHERE cluster_id = $1`
	result, err := r.query().ExecContext(ctx, query, clusterID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// postgresClusterTagRepo implements ClusterTagRepository for PostgreSQL
type postgresClusterTagRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresClusterTagRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresClusterTagRepo) Link(ctx context.Context, clusterID, tagID int64) error {
	query := `
		INSERT INTO cluster_tags (cluster_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (cluster_id, tag_id) DO NOTHING
	`
	_, err := r.query().ExecContext(ctx, query, clusterID, tagID)
	return err
}

func (r *postgresClusterTagRepo) ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterTag, error) {
	query := `SELECT id, cluster_id, tag_id FROM cluster_tags WHERE cluster_id = $1 ORDER BY id`
	rows, err := r.query().QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []core.ClusterTag
	for rows.Next() {
		var l core.ClusterTag
		if err := rows.Scan(&l.ID, &l.ClusterID, &l.TagID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *postgresClusterTagRepo) DeleteByCluster(ctx context.Context, clusterID int64) error {
	query := `DELETE FROM cluster_tags WHERE cluster_id = $1`
	_, err := r.query().ExecContext(ctx, query, clusterID)
	return err
}

// postgresClusterEntityRepo implements ClusterEntityRepository for PostgreSQL
type postgresClusterEntityRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresClusterEntityRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresClusterEntityRepo) Link(ctx context.Context, clusterID, entityID int64) error {
	query := `
		INSERT INTO cluster_entities (cluster_id, entity_id)
		VALUES ($1, $2)
		ON CONFLICT (cluster_id, entity_id) DO NOTHING
	`
	_, err := r.query().ExecContext(ctx, query, clusterID, entityID)
	return err
}

func (r *postgresClusterEntityRepo) ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterEntity, error) {
	query := `SELECT id, cluster_id, entity_id FROM cluster_entities WHERE cluster_id = $1 ORDER BY id`
	rows, err := r.query().QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []core.ClusterEntity
	for rows.Next() {
		var l core.ClusterEntity
		if err := rows.Scan(&l.ID, &l.ClusterID, &l.EntityID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *postgresClusterEntityRepo) DeleteByCluster(ctx context.Context, clusterID int64) error {
	query := `DELETE FROM cluster_entities WHERE cluster_id = $1`
	_, err := r.query().ExecContext(ctx, query, clusterID)
	return err
}

func (r *postgresClusterEntityRepo) DeleteByEntity(ctx context.Context, entityID int64) (int64, error) {
	query := `DELETE FROM cluster_entities WHERE entity_id = $1`
	result, err := r.query().ExecContext(ctx, query, entityID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

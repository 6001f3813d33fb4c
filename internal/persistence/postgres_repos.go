package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sharkwire/internal/core"
)

// postgresSourceRepo implements SourceRepository for PostgreSQL
type postgresSourceRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresSourceRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const sourceColumns = `id, name, category, ingest_method, base_url, feed_url,
	status, priority, last_fetched_at, fetch_error_count, metadata, created_at, updated_at`

func (r *postgresSourceRepo) Create(ctx context.Context, source *core.Source) error {
	metadata, err := marshalMetadata(source.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sources (name, category, ingest_method, base_url, feed_url, status, priority, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = r.query().QueryRowContext(ctx, query,
		source.Name, source.Category, source.IngestMethod, source.BaseURL,
		source.FeedURL, source.Status, source.Priority, metadata,
	).Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", translateError(err))
	}
	return nil
}

func (r *postgresSourceRepo) Get(ctx context.Context, id int64) (*core.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	return r.scanSource(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresSourceRepo) GetByName(ctx context.Context, name string) (*core.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE name = $1`
	return r.scanSource(r.query().QueryRowContext(ctx, query, name))
}

func (r *postgresSourceRepo) ListApproved(ctx context.Context) ([]core.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE status = 'approved'
		ORDER BY priority ASC, id ASC
	`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectSources(rows)
}

func (r *postgresSourceRepo) List(ctx context.Context, opts ListOptions) ([]core.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		ORDER BY priority ASC, id ASC
		LIMIT $1 OFFSET $2
	`
	limit := opts.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	rows, err := r.query().QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectSources(rows)
}

func (r *postgresSourceRepo) Update(ctx context.Context, source *core.Source) error {
	metadata, err := marshalMetadata(source.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE sources SET
			name = $2, category = $3, ingest_method = $4, base_url = $5,
			feed_url = $6, status = $7, priority = $8, metadata = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err = r.query().ExecContext(ctx, query,
		source.ID, source.Name, source.Category, source.IngestMethod,
		source.BaseURL, source.FeedURL, source.Status, source.Priority, metadata,
	)
	return translateError(err)
}

func (r *postgresSourceRepo) RecordFetchSuccess(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE sources
		SET last_fetched_at = $2, fetch_error_count = 0, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query, id, at)
	return err
}

func (r *postgresSourceRepo) RecordFetchFailure(ctx context.Context, id int64) error {
	query := `
		UPDATE sources
		SET fetch_error_count = fetch_error_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query, id)
	return err
}

func (r *postgresSourceRepo) scanSource(row *sql.Row) (*core.Source, error) {
	var source core.Source
	var feedURL sql.NullString
	var metadata []byte

	err := row.Scan(
		&source.ID, &source.Name, &source.Category, &source.IngestMethod,
		&source.BaseURL, &feedURL, &source.Status, &source.Priority,
		&source.LastFetchedAt, &source.FetchErrorCount, &metadata,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	source.FeedURL = feedURL.String
	if err := unmarshalMetadata(metadata, &source.Metadata); err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *postgresSourceRepo) collectSources(rows *sql.Rows) ([]core.Source, error) {
	var sources []core.Source
	for rows.Next() {
		var source core.Source
		var feedURL sql.NullString
		var metadata []byte
		err := rows.Scan(
			&source.ID, &source.Name, &source.Category, &source.IngestMethod,
			&source.BaseURL, &feedURL, &source.Status, &source.Priority,
			&source.LastFetchedAt, &source.FetchErrorCount, &metadata,
			&source.CreatedAt, &source.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		source.FeedURL = feedURL.String
		if err := unmarshalMetadata(metadata, &source.Metadata); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// postgresEntityRepo implements EntityRepository for PostgreSQL
type postgresEntityRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresEntityRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresEntityRepo) Upsert(ctx context.Context, entity *core.Entity) error {
	metadata, err := marshalMetadata(entity.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entities (name, slug, entity_type, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			metadata = EXCLUDED.metadata
		RETURNING id, created_at
	`
	err = r.query().QueryRowContext(ctx, query,
		entity.Name, entity.Slug, entity.EntityType, metadata,
	).Scan(&entity.ID, &entity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

func (r *postgresEntityRepo) Get(ctx context.Context, id int64) (*core.Entity, error) {
	query := `SELECT id, name, slug, entity_type, metadata, created_at FROM entities WHERE id = $1`
	return r.scanEntity(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresEntityRepo) GetBySlug(ctx context.Context, slug string) (*core.Entity, error) {
	query := `SELECT id, name, slug, entity_type, metadata, created_at FROM entities WHERE slug = $1`
	return r.scanEntity(r.query().QueryRowContext(ctx, query, slug))
}

func (r *postgresEntityRepo) ListAll(ctx context.Context) ([]core.Entity, error) {
	query := `SELECT id, name, slug, entity_type, metadata, created_at FROM entities ORDER BY id`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectEntities(rows)
}

func (r *postgresEntityRepo) ListByType(ctx context.Context, entityType string) ([]core.Entity, error) {
	query := `SELECT id, name, slug, entity_type, metadata, created_at FROM entities WHERE entity_type = $1 ORDER BY id`
	rows, err := r.query().QueryContext(ctx, query, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectEntities(rows)
}

func (r *postgresEntityRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM entities WHERE id = $1`
	_, err := r.query().ExecContext(ctx, query, id)
	return err
}

func (r *postgresEntityRepo) scanEntity(row *sql.Row) (*core.Entity, error) {
	var entity core.Entity
	var metadata []byte
	err := row.Scan(&entity.ID, &entity.Name, &entity.Slug, &entity.EntityType, &metadata, &entity.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	if err := unmarshalMetadata(metadata, &entity.Metadata); err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *postgresEntityRepo) collectEntities(rows *sql.Rows) ([]core.Entity, error) {
	var entities []core.Entity
	for rows.Next() {
		var entity core.Entity
		var metadata []byte
		err := rows.Scan(&entity.ID, &entity.Name, &entity.Slug, &entity.EntityType, &metadata, &entity.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := unmarshalMetadata(metadata, &entity.Metadata); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// postgresTagRepo implements TagRepository for PostgreSQL
type postgresTagRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresTagRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresTagRepo) GetOrCreate(ctx context.Context, name string) (*core.Tag, error) {
	slug := core.MakeSlug(name)

	// Upsert keyed on slug so concurrent callers converge on one row.
	query := `
		INSERT INTO tags (name, slug)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, name, slug, display_color, created_at
	`
	return r.scanTag(r.query().QueryRowContext(ctx, query, name, slug))
}

func (r *postgresTagRepo) GetBySlug(ctx context.Context, slug string) (*core.Tag, error) {
	query := `SELECT id, name, slug, display_color, created_at FROM tags WHERE slug = $1`
	return r.scanTag(r.query().QueryRowContext(ctx, query, slug))
}

func (r *postgresTagRepo) scanTag(row *sql.Row) (*core.Tag, error) {
	var tag core.Tag
	var displayColor sql.NullString
	err := row.Scan(&tag.ID, &tag.Name, &tag.Slug, &displayColor, &tag.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	tag.DisplayColor = displayColor.String
	return &tag, nil
}

// postgresRawItemRepo implements RawItemRepository for PostgreSQL
type postgresRawItemRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresRawItemRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const rawItemColumns = `id, source_id, source_item_id, ingestion_origin, original_url,
	canonical_url, raw_title, raw_description, raw_content, published_at,
	fetched_at, ingest_hash, metadata, created_at`

func (r *postgresRawItemRepo) Create(ctx context.Context, item *core.RawItem) error {
	metadata, err := marshalMetadata(item.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO raw_items (
			source_id, source_item_id, ingestion_origin, original_url, canonical_url,
			raw_title, raw_description, raw_content, published_at, fetched_at,
			ingest_hash, metadata
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	err = r.query().QueryRowContext(ctx, query,
		item.SourceID, item.SourceItemID, item.IngestionOrigin, item.OriginalURL,
		item.CanonicalURL, item.RawTitle, item.RawDescription, item.RawContent,
		item.PublishedAt, item.FetchedAt, item.IngestHash, metadata,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert raw item: %w", translateError(err))
	}
	return nil
}

func (r *postgresRawItemRepo) Get(ctx context.Context, id int64) (*core.RawItem, error) {
	query := `SELECT ` + rawItemColumns + ` FROM raw_items WHERE id = $1`
	return r.scanRawItem(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresRawItemRepo) GetBySourceItem(ctx context.Context, sourceID int64, sourceItemID string) (*core.RawItem, error) {
	query := `SELECT ` + rawItemColumns + ` FROM raw_items WHERE source_id = $1 AND source_item_id = $2`
	return r.scanRawItem(r.query().QueryRowContext(ctx, query, sourceID, sourceItemID))
}

func (r *postgresRawItemRepo) GetByCanonicalURL(ctx context.Context, url string) (*core.RawItem, error) {
	query := `SELECT ` + rawItemColumns + ` FROM raw_items WHERE canonical_url = $1`
	return r.scanRawItem(r.query().QueryRowContext(ctx, query, url))
}

func (r *postgresRawItemRepo) GetByIngestHash(ctx context.Context, hash string) (*core.RawItem, error) {
	query := `SELECT ` + rawItemColumns + ` FROM raw_items WHERE ingest_hash = $1`
	return r.scanRawItem(r.query().QueryRowContext(ctx, query, hash))
}

func (r *postgresRawItemRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM raw_items WHERE fetched_at < $1`
	result, err := r.query().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postgresRawItemRepo) scanRawItem(row *sql.Row) (*core.RawItem, error) {
	var item core.RawItem
	var sourceItemID, rawTitle, rawDescription, rawContent sql.NullString
	var metadata []byte

	err := row.Scan(
		&item.ID, &item.SourceID, &sourceItemID, &item.IngestionOrigin,
		&item.OriginalURL, &item.CanonicalURL, &rawTitle, &rawDescription,
		&rawContent, &item.PublishedAt, &item.FetchedAt, &item.IngestHash,
		&metadata, &item.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	item.SourceItemID = sourceItemID.String
	item.RawTitle = rawTitle.String
	item.RawDescription = rawDescription.String
	item.RawContent = rawContent.String
	if err := unmarshalMetadata(metadata, &item.Metadata); err != nil {
		return nil, err
	}
	return &item, nil
}

// postgresValidationLogRepo implements ValidationLogRepository for PostgreSQL
type postgresValidationLogRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresValidationLogRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresValidationLogRepo) Create(ctx context.Context, log *core.ValidationLog) error {
	query := `
		INSERT INTO validation_logs (
			raw_item_id, method, result, llm_response, llm_model,
			keyword_matched, entities_found, reason, latency_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err := r.query().QueryRowContext(ctx, query,
		log.RawItemID, log.Method, log.Result, log.LLMResponse, log.LLMModel,
		log.KeywordMatched, pq.Array(log.EntitiesFound), log.Reason,
		log.LatencyMs, log.ErrorMessage,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert validation log: %w", err)
	}
	return nil
}

func (r *postgresValidationLogRepo) ListByRawItem(ctx context.Context, rawItemID int64) ([]core.ValidationLog, error) {
	query := `
		SELECT id, raw_item_id, method, result, llm_response, llm_model,
			   keyword_matched, entities_found, reason, latency_ms, error_message, created_at
		FROM validation_logs
		WHERE raw_item_id = $1
		ORDER BY id
	`
	rows, err := r.query().QueryContext(ctx, query, rawItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []core.ValidationLog
	for rows.Next() {
		var log core.ValidationLog
		var llmResponse, llmModel, reason, errorMessage sql.NullString
		err := rows.Scan(
			&log.ID, &log.RawItemID, &log.Method, &log.Result, &llmResponse,
			&llmModel, &log.KeywordMatched, pq.Array(&log.EntitiesFound),
			&reason, &log.LatencyMs, &errorMessage, &log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		log.LLMResponse = llmResponse.String
		log.LLMModel = llmModel.String
		log.Reason = reason.String
		log.ErrorMessage = errorMessage.String
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (r *postgresValidationLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM validation_logs WHERE created_at < $1`
	result, err := r.query().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sharkwire/internal/core"
)

// postgresSubmissionRepo implements SubmissionRepository for PostgreSQL
type postgresSubmissionRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresSubmissionRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const submissionColumns = `id, url, normalized_url, domain, note, submitter_ip,
	status, raw_item_id, variant_id, cluster_id, rejection_reason, created_at, processed_at`

func (r *postgresSubmissionRepo) Create(ctx context.Context, submission *core.Submission) error {
	query := `
		INSERT INTO submissions (url, normalized_url, domain, note, submitter_ip, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.query().QueryRowContext(ctx, query,
		submission.URL, submission.NormalizedURL, submission.Domain,
		submission.Note, submission.SubmitterIP, submission.Status,
	).Scan(&submission.ID, &submission.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (r *postgresSubmissionRepo) Get(ctx context.Context, id int64) (*core.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return r.scanSubmission(r.query().QueryRowContext(ctx, query, id))
}

func (r *postgresSubmissionRepo) Update(ctx context.Context, submission *core.Submission) error {
	query := `
		UPDATE submissions SET
			status = $2, raw_item_id = $3, variant_id = $4, cluster_id = $5,
			rejection_reason = $6, processed_at = $7
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query,
		submission.ID, submission.Status, submission.RawItemID,
		submission.VariantID, submission.ClusterID, submission.RejectionReason,
		submission.ProcessedAt,
	)
	return err
}

func (r *postgresSubmissionRepo) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM submissions WHERE submitter_ip = $1 AND created_at >= $2`
	var count int
	err := r.query().QueryRowContext(ctx, query, ip, since).Scan(&count)
	return count, err
}

func (r *postgresSubmissionRepo) ListByStatus(ctx context.Context, status core.SubmissionStatus, limit int) ([]core.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	if limit == 0 {
		limit = 100 // Default limit
	}
	rows, err := r.query().QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []core.Submission
	for rows.Next() {
		var s core.Submission
		var note, rejectionReason sql.NullString
		err := rows.Scan(
			&s.ID, &s.URL, &s.NormalizedURL, &s.Domain, &note, &s.SubmitterIP,
			&s.Status, &s.RawItemID, &s.VariantID, &s.ClusterID,
			&rejectionReason, &s.CreatedAt, &s.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		s.Note = note.String
		s.RejectionReason = rejectionReason.String
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

func (r *postgresSubmissionRepo) scanSubmission(row *sql.Row) (*core.Submission, error) {
	var s core.Submission
	var note, rejectionReason sql.NullString
	err := row.Scan(
		&s.ID, &s.URL, &s.NormalizedURL, &s.Domain, &note, &s.SubmitterIP,
		&s.Status, &s.RawItemID, &s.VariantID, &s.ClusterID,
		&rejectionReason, &s.CreatedAt, &s.ProcessedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	s.Note = note.String
	s.RejectionReason = rejectionReason.String
	return &s, nil
}

// postgresCandidateSourceRepo implements CandidateSourceRepository for PostgreSQL
type postgresCandidateSourceRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresCandidateSourceRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const candidateSourceColumns = `id, domain, base_url, discovered_from_submission_id,
	suggested_category, suggested_ingest_method, discovered_feed_url,
	rss_discovery_attempted, rss_discovery_success, times_submitted, status,
	review_notes, reviewed_at, created_at, updated_at`

func (r *postgresCandidateSourceRepo) Create(ctx context.Context, candidate *core.CandidateSource) error {
	query := `
		INSERT INTO candidate_sources (
			domain, base_url, discovered_from_submission_id, suggested_category,
			suggested_ingest_method, discovered_feed_url, rss_discovery_attempted,
			rss_discovery_success, times_submitted, status
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := r.query().QueryRowContext(ctx, query,
		candidate.Domain, candidate.BaseURL, candidate.DiscoveredFromID,
		candidate.SuggestedCategory, candidate.SuggestedIngestMethod,
		candidate.DiscoveredFeedURL, candidate.RSSDiscoveryAttempted,
		candidate.RSSDiscoverySuccess, candidate.TimesSubmitted, candidate.Status,
	).Scan(&candidate.ID, &candidate.CreatedAt, &candidate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert candidate source: %w", translateError(err))
	}
	return nil
}

func (r *postgresCandidateSourceRepo) GetByDomain(ctx context.Context, domain string) (*core.CandidateSource, error) {
	query := `SELECT ` + candidateSourceColumns + ` FROM candidate_sources WHERE domain = $1`
	return r.scanCandidate(r.query().QueryRowContext(ctx, query, domain))
}

func (r *postgresCandidateSourceRepo) Update(ctx context.Context, candidate *core.CandidateSource) error {
	query := `
		UPDATE candidate_sources SET
			base_url = $2, suggested_category = $3, suggested_ingest_method = $4,
			discovered_feed_url = NULLIF($5, ''), rss_discovery_attempted = $6,
			rss_discovery_success = $7, times_submitted = $8, status = $9,
			review_notes = $10, reviewed_at = $11, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query,
		candidate.ID, candidate.BaseURL, candidate.SuggestedCategory,
		candidate.SuggestedIngestMethod, candidate.DiscoveredFeedURL,
		candidate.RSSDiscoveryAttempted, candidate.RSSDiscoverySuccess,
		candidate.TimesSubmitted, candidate.Status, candidate.ReviewNotes,
		candidate.ReviewedAt,
	)
	return err
}

func (r *postgresCandidateSourceRepo) List(ctx context.Context, opts ListOptions) ([]core.CandidateSource, error) {
	query := `
		SELECT ` + candidateSourceColumns + `
		FROM candidate_sources
		ORDER BY times_submitted DESC, created_at ASC
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

	var candidates []core.CandidateSource
	for rows.Next() {
		var c core.CandidateSource
		var feedURL, reviewNotes sql.NullString
		err := rows.Scan(
			&c.ID, &c.Domain, &c.BaseURL, &c.DiscoveredFromID,
			&c.SuggestedCategory, &c.SuggestedIngestMethod, &feedURL,
			&c.RSSDiscoveryAttempted, &c.RSSDiscoverySuccess, &c.TimesSubmitted,
			&c.Status, &reviewNotes, &c.ReviewedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		c.DiscoveredFeedURL = feedURL.String
		c.ReviewNotes = reviewNotes.String
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *postgresCandidateSourceRepo) scanCandidate(row *sql.Row) (*core.CandidateSource, error) {
	var c core.CandidateSource
	var feedURL, reviewNotes sql.NullString
	err := row.Scan(
		&c.ID, &c.Domain, &c.BaseURL, &c.DiscoveredFromID,
		&c.SuggestedCategory, &c.SuggestedIngestMethod, &feedURL,
		&c.RSSDiscoveryAttempted, &c.RSSDiscoverySuccess, &c.TimesSubmitted,
		&c.Status, &reviewNotes, &c.ReviewedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	c.DiscoveredFeedURL = feedURL.String
	c.ReviewNotes = reviewNotes.String
	return &c, nil
}

// postgresFeedCacheRepo implements FeedCacheRepository for PostgreSQL
type postgresFeedCacheRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresFeedCacheRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresFeedCacheRepo) Get(ctx context.Context, key string) (*core.FeedCacheEntry, error) {
	query := `SELECT id, cache_key, payload, expires_at, created_at FROM feed_cache WHERE cache_key = $1`
	var entry core.FeedCacheEntry
	var payload []byte
	err := r.query().QueryRowContext(ctx, query, key).
		Scan(&entry.ID, &entry.CacheKey, &payload, &entry.ExpiresAt, &entry.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	if err := unmarshalMetadata(payload, &entry.Payload); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *postgresFeedCacheRepo) Set(ctx context.Context, entry *core.FeedCacheEntry) error {
	payload, err := marshalMetadata(entry.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO feed_cache (cache_key, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at
		RETURNING id, created_at
	`
	err = r.query().QueryRowContext(ctx, query, entry.CacheKey, payload, entry.ExpiresAt).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert feed cache entry: %w", err)
	}
	return nil
}

func (r *postgresFeedCacheRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM feed_cache WHERE expires_at < $1`
	result, err := r.query().ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// postgresSiteMetricsRepo implements SiteMetricsRepository for PostgreSQL
type postgresSiteMetricsRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresSiteMetricsRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresSiteMetricsRepo) Increment(ctx context.Context, key string, delta int64) error {
	query := `
		INSERT INTO site_metrics (metric_key, metric_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (metric_key) DO UPDATE SET
			metric_value = site_metrics.metric_value + EXCLUDED.metric_value,
			updated_at = NOW()
	`
	_, err := r.query().ExecContext(ctx, query, key, delta)
	return err
}

func (r *postgresSiteMetricsRepo) Get(ctx context.Context, key string) (int64, error) {
	query := `SELECT metric_value FROM site_metrics WHERE metric_key = $1`
	var value int64
	err := r.query().QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		return 0, translateError(err)
	}
	return value, nil
}

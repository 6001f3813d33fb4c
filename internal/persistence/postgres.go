// Package persistence provides database implementations
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresDB implements the Store interface for PostgreSQL
type PostgresDB struct {
	db               *sql.DB
	sources          SourceRepository
	entities         EntityRepository
	tags             TagRepository
	rawItems         RawItemRepository
	variants         StoryVariantRepository
	clusters         ClusterRepository
	clusterVariants  ClusterVariantRepository
	clusterTags      ClusterTagRepository
	clusterEntities  ClusterEntityRepository
	submissions      SubmissionRepository
	candidateSources CandidateSourceRepository
	validationLogs   ValidationLogRepository
	feedCache        FeedCacheRepository
	siteMetrics      SiteMetricsRepository
}

// PoolOptions tunes the connection pool. Zero values fall back to the
// defaults used by NewPostgresDB.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresDB creates a new PostgreSQL database connection with default
// pool settings.
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	return NewPostgresDBWithPool(connectionString, PoolOptions{})
}

// NewPostgresDBWithPool creates a new PostgreSQL database connection with
// the given pool settings.
func NewPostgresDBWithPool(connectionString string, pool PoolOptions) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 5
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.sources = &postgresSourceRepo{db: db}
	pgDB.entities = &postgresEntityRepo{db: db}
	pgDB.tags = &postgresTagRepo{db: db}
	pgDB.rawItems = &postgresRawItemRepo{db: db}
	pgDB.variants = &postgresVariantRepo{db: db}
	pgDB.clusters = &postgresClusterRepo{db: db}
	pgDB.clusterVariants = &postgresClusterVariantRepo{db: db}
	pgDB.clusterTags = &postgresClusterTagRepo{db: db}
	pgDB.clusterEntities = &postgresClusterEntityRepo{db: db}
	pgDB.submissions = &postgresSubmissionRepo{db: db}
	pgDB.candidateSources = &postgresCandidateSourceRepo{db: db}
	pgDB.validationLogs = &postgresValidationLogRepo{db: db}
	pgDB.feedCache = &postgresFeedCacheRepo{db: db}
	pgDB.siteMetrics = &postgresSiteMetricsRepo{db: db}

	return pgDB, nil
}

func (p *PostgresDB) Sources() SourceRepository                   { return p.sources }
func (p *PostgresDB) Entities() EntityRepository                  { return p.entities }
func (p *PostgresDB) Tags() TagRepository                         { return p.tags }
func (p *PostgresDB) RawItems() RawItemRepository                 { return p.rawItems }
func (p *PostgresDB) Variants() StoryVariantRepository            { return p.variants }
func (p *PostgresDB) Clusters() ClusterRepository                 { return p.clusters }
func (p *PostgresDB) ClusterVariants() ClusterVariantRepository   { return p.clusterVariants }
func (p *PostgresDB) ClusterTags() ClusterTagRepository           { return p.clusterTags }
func (p *PostgresDB) ClusterEntities() ClusterEntityRepository    { return p.clusterEntities }
func (p *PostgresDB) Submissions() SubmissionRepository           { return p.submissions }
func (p *PostgresDB) CandidateSources() CandidateSourceRepository { return p.candidateSources }
func (p *PostgresDB) ValidationLogs() ValidationLogRepository     { return p.validationLogs }
func (p *PostgresDB) FeedCache() FeedCacheRepository              { return p.feedCache }
func (p *PostgresDB) SiteMetrics() SiteMetricsRepository          { return p.siteMetrics }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:              tx,
		variants:        &postgresVariantRepo{db: p.db, tx: tx},
		clusters:        &postgresClusterRepo{db: p.db, tx: tx},
		clusterVariants: &postgresClusterVariantRepo{db: p.db, tx: tx},
		clusterTags:     &postgresClusterTagRepo{db: p.db, tx: tx},
		clusterEntities: &postgresClusterEntityRepo{db: p.db, tx: tx},
	}, nil
}

// postgresTx implements Transaction interface
type postgresTx struct {
	tx              *sql.Tx
	variants        StoryVariantRepository
	clusters        ClusterRepository
	clusterVariants ClusterVariantRepository
	clusterTags     ClusterTagRepository
	clusterEntities ClusterEntityRepository
}

func (t *postgresTx) Commit() error                              { return t.tx.Commit() }
func (t *postgresTx) Rollback() error                            { return t.tx.Rollback() }
func (t *postgresTx) Variants() StoryVariantRepository           { return t.variants }
func (t *postgresTx) Clusters() ClusterRepository                { return t.clusters }
func (t *postgresTx) ClusterVariants() ClusterVariantRepository  { return t.clusterVariants }
func (t *postgresTx) ClusterTags() ClusterTagRepository          { return t.clusterTags }
func (t *postgresTx) ClusterEntities() ClusterEntityRepository   { return t.clusterEntities }

// queryer abstracts *sql.DB and *sql.Tx so repositories can run inside or
// outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// marshalMetadata encodes a metadata map as JSONB, defaulting to {}.
func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// unmarshalMetadata decodes a JSONB column into a metadata map.
func unmarshalMetadata(data []byte, m *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}

// translateError maps driver errors to the package sentinel errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

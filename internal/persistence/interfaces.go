// Package persistence provides database abstraction interfaces for storing
// sources, raw items, story variants, clusters, and submissions
package persistence

import (
	"context"
	"errors"
	"time"

	"sharkwire/internal/core"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate")
)

// SourceRepository handles source persistence operations
type SourceRepository interface {
	// Create inserts a new source and populates its ID
	Create(ctx context.Context, source *core.Source) error

	// Get retrieves a source by ID
	Get(ctx context.Context, id int64) (*core.Source, error)

	// GetByName retrieves a source by its display name
	GetByName(ctx context.Context, name string) (*core.Source, error)

	// ListApproved retrieves approved sources ordered by priority
	ListApproved(ctx context.Context) ([]core.Source, error)

	// List retrieves sources with pagination
	List(ctx context.Context, opts ListOptions) ([]core.Source, error)

	// Update updates an existing source
	Update(ctx context.Context, source *core.Source) error

	// RecordFetchSuccess stamps last_fetched_at and resets the error counter
	RecordFetchSuccess(ctx context.Context, id int64, at time.Time) error

	// RecordFetchFailure increments the consecutive fetch error counter
	RecordFetchFailure(ctx context.Context, id int64) error
}

// EntityRepository handles roster entity persistence operations
type EntityRepository interface {
	// Upsert inserts an entity or updates it in place, keyed by slug
	Upsert(ctx context.Context, entity *core.Entity) error

	// Get retrieves an entity by ID
	Get(ctx context.Context, id int64) (*core.Entity, error)

	// GetBySlug retrieves an entity by its slug
	GetBySlug(ctx context.Context, slug string) (*core.Entity, error)

	// ListAll retrieves every entity
	ListAll(ctx context.Context) ([]core.Entity, error)

	// ListByType retrieves entities of a given type
	ListByType(ctx context.Context, entityType string) ([]core.Entity, error)

	// Delete removes an entity by ID
	Delete(ctx context.Context, id int64) error
}

// TagRepository handles tag persistence operations
type TagRepository interface {
	// GetOrCreate returns the tag with the given name, creating it lazily
	GetOrCreate(ctx context.Context, name string) (*core.Tag, error)

	// GetBySlug retrieves a tag by its slug
	GetBySlug(ctx context.Context, slug string) (*core.Tag, error)
}

// RawItemRepository handles raw item persistence operations
type RawItemRepository interface {
	// Create inserts a new raw item and populates its ID
	Create(ctx context.Context, item *core.RawItem) error

	// Get retrieves a raw item by ID
	Get(ctx context.Context, id int64) (*core.RawItem, error)

	// GetBySourceItem retrieves a raw item by its external GUID
	GetBySourceItem(ctx context.Context, sourceID int64, sourceItemID string) (*core.RawItem, error)

	// GetByCanonicalURL retrieves a raw item by normalized URL
	GetByCanonicalURL(ctx context.Context, url string) (*core.RawItem, error)

	// GetByIngestHash retrieves a raw item by its content hash
	GetByIngestHash(ctx context.Context, hash string) (*core.RawItem, error)

	// DeleteOlderThan removes raw items fetched before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoryVariantRepository handles story variant persistence operations
type StoryVariantRepository interface {
	// Create inserts a new story variant and populates its ID
	Create(ctx context.Context, variant *core.StoryVariant) error

	// Get retrieves a variant by ID
	Get(ctx context.Context, id int64) (*core.StoryVariant, error)

	// GetByURL retrieves a variant by its canonical URL
	GetByURL(ctx context.Context, url string) (*core.StoryVariant, error)

	// GetByRawItem retrieves the variant derived from a raw item
	GetByRawItem(ctx context.Context, rawItemID int64) (*core.StoryVariant, error)

	// Update updates an existing variant
	Update(ctx context.Context, variant *core.StoryVariant) error

	// ListByCluster retrieves all variants linked to a cluster
	ListByCluster(ctx context.Context, clusterID int64) ([]core.StoryVariant, error)
}

// ClusterRepository handles cluster persistence operations
type ClusterRepository interface {
	// Create inserts a new cluster and populates its ID
	Create(ctx context.Context, cluster *core.Cluster) error

	// Get retrieves a cluster by ID
	Get(ctx context.Context, id int64) (*core.Cluster, error)

	// Update updates an existing cluster
	Update(ctx context.Context, cluster *core.Cluster) error

	// ListActiveSince retrieves active clusters first seen at or after the cutoff
	ListActiveSince(ctx context.Context, cutoff time.Time) ([]core.Cluster, error)

	// Delete removes a cluster by ID
	Delete(ctx context.Context, id int64) error

	// DeleteOlderThan removes clusters last seen before the cutoff, returning
	// the number deleted; link rows go with them
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ClusterVariantRepository handles cluster membership rows
type ClusterVariantRepository interface {
	// Link attaches a variant to a cluster; re-linking an existing pair is a no-op
	Link(ctx context.Context, link *core.ClusterVariant) error

	// ListByCluster retrieves the membership rows of a cluster
	ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterVariant, error)

	// GetByVariant retrieves the membership row of a variant, if any
	GetByVariant(ctx context.Context, variantID int64) (*core.ClusterVariant, error)

	// DeleteByCluster removes all membership rows of a cluster
	DeleteByCluster(ctx context.Context, clusterID int64) (int64, error)
}

// ClusterTagRepository handles cluster-to-tag links
type ClusterTagRepository interface {
	// Link attaches a tag to a cluster; re-linking is a no-op
	Link(ctx context.Context, clusterID, tagID int64) error

	// ListByCluster retrieves the tag links of a cluster
	ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterTag, error)

	// DeleteByCluster removes all tag links of a cluster
	DeleteByCluster(ctx context.Context, clusterID int64) error
}

// ClusterEntityRepository handles cluster-to-entity links
type ClusterEntityRepository interface {
	// Link attaches an entity to a cluster; re-linking is a no-op
	Link(ctx context.Context, clusterID, entityID int64) error

	// ListByCluster retrieves the entity links of a cluster
	ListByCluster(ctx context.Context, clusterID int64) ([]core.ClusterEntity, error)

	// DeleteByCluster removes all entity links of a cluster
	DeleteByCluster(ctx context.Context, clusterID int64) error

	// DeleteByEntity removes every link referencing an entity
	DeleteByEntity(ctx context.Context, entityID int64) (int64, error)
}

// SubmissionRepository handles user submission persistence operations
type SubmissionRepository interface {
	// Create inserts a new submission and populates its ID
	Create(ctx context.Context, submission *core.Submission) error

	// Get retrieves a submission by ID
	Get(ctx context.Context, id int64) (*core.Submission, error)

	// Update updates an existing submission
	Update(ctx context.Context, submission *core.Submission) error

	// CountByIPSince counts submissions from an IP created at or after the cutoff
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error)

	// ListByStatus retrieves submissions in a given status
	ListByStatus(ctx context.Context, status core.SubmissionStatus, limit int) ([]core.Submission, error)
}

// CandidateSourceRepository handles discovered source candidates
type CandidateSourceRepository interface {
	// Create inserts a new candidate source and populates its ID
	Create(ctx context.Context, candidate *core.CandidateSource) error

	// GetByDomain retrieves a candidate by its domain
	GetByDomain(ctx context.Context, domain string) (*core.CandidateSource, error)

	// Update updates an existing candidate source
	Update(ctx context.Context, candidate *core.CandidateSource) error

	// List retrieves candidate sources with pagination
	List(ctx context.Context, opts ListOptions) ([]core.CandidateSource, error)
}

// ValidationLogRepository handles relevance decision audit rows
type ValidationLogRepository interface {
	// Create inserts a new validation log row
	Create(ctx context.Context, log *core.ValidationLog) error

	// ListByRawItem retrieves the validation history of a raw item
	ListByRawItem(ctx context.Context, rawItemID int64) ([]core.ValidationLog, error)

	// DeleteOlderThan removes validation logs created before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FeedCacheRepository handles per-feed fetch state with TTL
type FeedCacheRepository interface {
	// Get retrieves a cache entry by key
	Get(ctx context.Context, key string) (*core.FeedCacheEntry, error)

	// Set inserts or replaces the cache entry for a key
	Set(ctx context.Context, entry *core.FeedCacheEntry) error

	// DeleteExpired removes entries whose TTL elapsed before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SiteMetricsRepository handles pipeline counters
type SiteMetricsRepository interface {
	// Increment adds delta to a counter, creating it at zero if missing
	Increment(ctx context.Context, key string, delta int64) error

	// Get retrieves the current value of a counter
	Get(ctx context.Context, key string) (int64, error)
}

// ListOptions provides common filtering and pagination options
type ListOptions struct {
	Limit  int               // Maximum number of results (0 for default)
	Offset int               // Number of results to skip
	Filter map[string]string // Key-value filters
}

// Store represents the main database interface that aggregates all repositories
type Store interface {
	// Sources returns the source repository
	Sources() SourceRepository

	// Entities returns the entity repository
	Entities() EntityRepository

	// Tags returns the tag repository
	Tags() TagRepository

	// RawItems returns the raw item repository
	RawItems() RawItemRepository

	// Variants returns the story variant repository
	Variants() StoryVariantRepository

	// Clusters returns the cluster repository
	Clusters() ClusterRepository

	// ClusterVariants returns the cluster membership repository
	ClusterVariants() ClusterVariantRepository

	// ClusterTags returns the cluster tag link repository
	ClusterTags() ClusterTagRepository

	// ClusterEntities returns the cluster entity link repository
	ClusterEntities() ClusterEntityRepository

	// Submissions returns the submission repository
	Submissions() SubmissionRepository

	// CandidateSources returns the candidate source repository
	CandidateSources() CandidateSourceRepository

	// ValidationLogs returns the validation log repository
	ValidationLogs() ValidationLogRepository

	// FeedCache returns the feed cache repository
	FeedCache() FeedCacheRepository

	// SiteMetrics returns the site metrics repository
	SiteMetrics() SiteMetricsRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a transaction-scoped view of the store. Only the
// repositories the clustering path mutates together are exposed.
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Variants returns the story variant repository within this transaction
	Variants() StoryVariantRepository

	// Clusters returns the cluster repository within this transaction
	Clusters() ClusterRepository

	// ClusterVariants returns the cluster membership repository within this transaction
	ClusterVariants() ClusterVariantRepository

	// ClusterTags returns the cluster tag link repository within this transaction
	ClusterTags() ClusterTagRepository

	// ClusterEntities returns the cluster entity link repository within this transaction
	ClusterEntities() ClusterEntityRepository
}

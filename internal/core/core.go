// Package core defines the domain types shared across the ingestion and
// clustering pipeline. All persistence and business packages exchange these
// types; they carry no behavior beyond small derived accessors.
package core

import (
	"regexp"
	"strings"
	"time"
)

// SourceCategory classifies where a source sits on the trust spectrum.
type SourceCategory string

const (
	SourceCategoryOfficial SourceCategory = "official"
	SourceCategoryPress    SourceCategory = "press"
	SourceCategoryOther    SourceCategory = "other"
)

// IngestMethod selects the fetcher used for a source.
type IngestMethod string

const (
	IngestMethodRSS     IngestMethod = "rss"
	IngestMethodHTML    IngestMethod = "html"
	IngestMethodAPI     IngestMethod = "api"
	IngestMethodReddit  IngestMethod = "reddit"
	IngestMethodTwitter IngestMethod = "twitter"
)

// SourceStatus is the review lifecycle of a source. Only approved sources
// participate in the scheduled fetch fan-out.
type SourceStatus string

const (
	SourceStatusCandidate       SourceStatus = "candidate"
	SourceStatusQueuedForReview SourceStatus = "queued_for_review"
	SourceStatusApproved        SourceStatus = "approved"
	SourceStatusRejected        SourceStatus = "rejected"
)

// Source is an external content origin (RSS feed, scraped page, API).
type Source struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`              // Display name
	Category        SourceCategory `json:"category"`          // official/press/other
	IngestMethod    IngestMethod   `json:"ingest_method"`     // How content is fetched
	BaseURL         string         `json:"base_url"`          // Main site URL
	FeedURL         string         `json:"feed_url"`          // RSS feed URL, if any
	Status          SourceStatus   `json:"status"`            // Review lifecycle
	Priority        int            `json:"priority"`          // Fetch ordering, ascending
	LastFetchedAt   *time.Time     `json:"last_fetched_at"`   // Last successful fetch
	FetchErrorCount int            `json:"fetch_error_count"` // Consecutive fetch failures
	Metadata        map[string]any `json:"metadata"`          // Per-source config (selectors, flags)
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SourceSignal ranks a source's category for display ordering and headline
// arbitration: official=3, press=2, other=1.
func (s *Source) SourceSignal() int {
	switch s.Category {
	case SourceCategoryOfficial:
		return 3
	case SourceCategoryPress:
		return 2
	default:
		return 1
	}
}

// SkipRelevanceCheck reports whether the source is dedicated enough to the
// topic that the relevance filter is bypassed.
func (s *Source) SkipRelevanceCheck() bool {
	v, ok := s.Metadata["skip_relevance_check"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Entity is a roster member: player, coach, team, or staff.
type Entity struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`        // Full name, e.g. "Macklin Celebrini"
	Slug       string         `json:"slug"`        // Deterministic kebab-case of Name
	EntityType string         `json:"entity_type"` // player/coach/team/staff
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

const EntityTypeTeam = "team"

var (
	slugStripRe    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapseRe = regexp.MustCompile(`[-\s]+`)
)

// MakeSlug converts a name to its URL-friendly slug. The function is
// idempotent: MakeSlug(MakeSlug(x)) == MakeSlug(x).
func MakeSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Tag is a display label attached to clusters. Tags are created lazily when
// first referenced.
type Tag struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DisplayColor string    `json:"display_color"` // Hex color, optional
	CreatedAt    time.Time `json:"created_at"`
}

// IngestionOrigin records how a raw item entered the system.
type IngestionOrigin string

const (
	IngestionOriginScheduled     IngestionOrigin = "scheduled"
	IngestionOriginUserSubmitted IngestionOrigin = "user_submitted"
)

// RawItem is the pre-processing record of one fetched external item.
type RawItem struct {
	ID              int64           `json:"id"`
	SourceID        int64           `json:"source_id"`
	SourceItemID    string          `json:"source_item_id"` // External GUID, for idempotency
	IngestionOrigin IngestionOrigin `json:"ingestion_origin"`
	OriginalURL     string          `json:"original_url"`
	CanonicalURL    string          `json:"canonical_url"` // Normalized URL, dedup key
	RawTitle        string          `json:"raw_title"`
	RawDescription  string          `json:"raw_description"`
	RawContent      string          `json:"raw_content"`
	PublishedAt     *time.Time      `json:"published_at"`
	FetchedAt       time.Time       `json:"fetched_at"`
	IngestHash      string          `json:"ingest_hash"` // SHA-256 fallback dedup key
	Metadata        map[string]any  `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DisplayTitle returns the best available title for the item.
func (r *RawItem) DisplayTitle() string {
	if r.RawTitle != "" {
		return r.RawTitle
	}
	if r.RawDescription != "" {
		return r.RawDescription
	}
	return "Untitled"
}

// ContentType classifies the medium of a story variant.
type ContentType string

const (
	ContentTypeArticle    ContentType = "article"
	ContentTypeVideo      ContentType = "video"
	ContentTypePodcast    ContentType = "podcast"
	ContentTypeSocialPost ContentType = "social_post"
	ContentTypeForumPost  ContentType = "forum_post"
)

// VariantStatus is the lifecycle of a story variant.
type VariantStatus string

const (
	VariantStatusActive         VariantStatus = "active"
	VariantStatusPendingCluster VariantStatus = "pending_cluster"
	VariantStatusArchived       VariantStatus = "archived"
)

// StoryVariant is one source's enriched version of a story, derived from a
// raw item that survived the relevance filter.
type StoryVariant struct {
	ID           int64         `json:"id"`
	RawItemID    int64         `json:"raw_item_id"`
	SourceID     int64         `json:"source_id"`
	URL          string        `json:"url"` // Canonical URL, globally unique
	Title        string        `json:"title"`
	ContentType  ContentType   `json:"content_type"`
	PublishedAt  time.Time     `json:"published_at"`
	Tokens       []string      `json:"tokens"`   // Normalized tokens for clustering
	Entities     []int64       `json:"entities"` // Entity IDs found in text
	EventType    EventType     `json:"event_type"`
	SourceSignal int           `json:"source_signal"` // 1=other, 2=press, 3=official
	Status       VariantStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// EventType is the classified real-world event category.
type EventType string

const (
	EventTypeTrade    EventType = "trade"
	EventTypeInjury   EventType = "injury"
	EventTypeLineup   EventType = "lineup"
	EventTypeRecall   EventType = "recall"
	EventTypeWaiver   EventType = "waiver"
	EventTypeSigning  EventType = "signing"
	EventTypeProspect EventType = "prospect"
	EventTypeGame     EventType = "game"
	EventTypeOpinion  EventType = "opinion"
	EventTypeOther    EventType = "other"
)

// ClusterStatus is the lifecycle of a cluster.
type ClusterStatus string

const (
	ClusterStatusActive   ClusterStatus = "active"
	ClusterStatusArchived ClusterStatus = "archived"
	ClusterStatusMerged   ClusterStatus = "merged"
)

// Cluster groups the story variants judged to describe one real-world event.
// Invariants: FirstSeenAt <= LastSeenAt; SourceCount equals the number of
// linked variants; Tokens/EntitiesAgg are unions over member variants.
type Cluster struct {
	ID                   int64         `json:"id"`
	Headline             string        `json:"headline"`
	HeadlineSourceSignal int           `json:"headline_source_signal"`
	EventType            EventType     `json:"event_type"`
	Status               ClusterStatus `json:"status"`
	FirstSeenAt          time.Time     `json:"first_seen_at"`
	LastSeenAt           time.Time     `json:"last_seen_at"`
	Tokens               []string      `json:"tokens"`
	EntitiesAgg          []int64       `json:"entities_agg"`
	SourceCount          int           `json:"source_count"`
	ClickCount           int64         `json:"click_count"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ClusterVariant links a variant into a cluster, recording the similarity
// score computed at attachment time. Unique on (ClusterID, VariantID).
type ClusterVariant struct {
	ID              int64     `json:"id"`
	ClusterID       int64     `json:"cluster_id"`
	VariantID       int64     `json:"variant_id"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClusterTag links a tag to a cluster. Unique on (ClusterID, TagID).
type ClusterTag struct {
	ID        int64 `json:"id"`
	ClusterID int64 `json:"cluster_id"`
	TagID     int64 `json:"tag_id"`
}

// ClusterEntity links an entity to a cluster. Unique on (ClusterID, EntityID).
type ClusterEntity struct {
	ID        int64 `json:"id"`
	ClusterID int64 `json:"cluster_id"`
	EntityID  int64 `json:"entity_id"`
}

// SubmissionStatus is the lifecycle of a user submission. Any status other
// than received is terminal.
type SubmissionStatus string

const (
	SubmissionStatusReceived      SubmissionStatus = "received"
	SubmissionStatusPublished     SubmissionStatus = "published"
	SubmissionStatusPendingReview SubmissionStatus = "pending_review"
	SubmissionStatusRejected      SubmissionStatus = "rejected"
	SubmissionStatusDuplicate     SubmissionStatus = "duplicate"
)

// Submission is a user-supplied URL awaiting processing.
type Submission struct {
	ID              int64            `json:"id"`
	URL             string           `json:"url"`
	NormalizedURL   string           `json:"normalized_url"`
	Domain          string           `json:"domain"`
	Note            string           `json:"note"`
	SubmitterIP     string           `json:"submitter_ip"` // For rate limiting
	Status          SubmissionStatus `json:"status"`
	RawItemID       *int64           `json:"raw_item_id"`
	VariantID       *int64           `json:"variant_id"`
	ClusterID       *int64           `json:"cluster_id"`
	RejectionReason string           `json:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at"`
	ProcessedAt     *time.Time       `json:"processed_at"`
}

// CandidateSource is a new domain discovered through a submission, awaiting
// operator review before it can be promoted to a Source.
type CandidateSource struct {
	ID                    int64          `json:"id"`
	Domain                string         `json:"domain"` // Unique
	BaseURL               string         `json:"base_url"`
	DiscoveredFromID      *int64         `json:"discovered_from_submission_id"`
	SuggestedCategory     SourceCategory `json:"suggested_category"`
	SuggestedIngestMethod IngestMethod   `json:"suggested_ingest_method"`
	DiscoveredFeedURL     string         `json:"discovered_feed_url"`
	RSSDiscoveryAttempted bool           `json:"rss_discovery_attempted"`
	RSSDiscoverySuccess   bool           `json:"rss_discovery_success"`
	TimesSubmitted        int            `json:"times_submitted"`
	Status                SourceStatus   `json:"status"`
	ReviewNotes           string         `json:"review_notes"`
	ReviewedAt            *time.Time     `json:"reviewed_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// ValidationMethod identifies the strategy that produced a relevance decision.
type ValidationMethod string

const (
	ValidationMethodLLM     ValidationMethod = "llm"
	ValidationMethodKeyword ValidationMethod = "keyword"
	ValidationMethodSkip    ValidationMethod = "skip"
)

// ValidationResult is the outcome of a relevance decision.
type ValidationResult string

const (
	ValidationResultApproved ValidationResult = "approved"
	ValidationResultRejected ValidationResult = "rejected"
	ValidationResultError    ValidationResult = "error"
)

// ValidationLog is the audit record written for every relevance decision.
type ValidationLog struct {
	ID             int64            `json:"id"`
	RawItemID      int64            `json:"raw_item_id"`
	Method         ValidationMethod `json:"method"`
	Result         ValidationResult `json:"result"`
	LLMResponse    string           `json:"llm_response"`
	LLMModel       string           `json:"llm_model"`
	KeywordMatched *bool            `json:"keyword_matched"`
	EntitiesFound  []int64          `json:"entities_found"`
	Reason         string           `json:"reason"`
	LatencyMs      int64            `json:"latency_ms"`
	ErrorMessage   string           `json:"error_message"`
	CreatedAt      time.Time        `json:"created_at"`
}

// FeedCacheEntry persists per-feed fetch state (conditional GET validators)
// with a TTL. Expired entries are swept hourly.
type FeedCacheEntry struct {
	ID        int64          `json:"id"`
	CacheKey  string         `json:"cache_key"` // Unique
	Payload   map[string]any `json:"payload"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsExpired reports whether the cache entry's TTL has elapsed.
func (f *FeedCacheEntry) IsExpired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

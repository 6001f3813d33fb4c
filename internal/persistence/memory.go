package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sharkwire/internal/core"
)

// MemoryStore is an in-memory Store used in tests and local experiments. It
// enforces the same uniqueness rules as the Postgres implementation but
// provides no transaction isolation: a transaction writes straight through,
// and Rollback is a no-op.
type MemoryStore struct {
	mu sync.Mutex

	nextID int64

	sources         map[int64]core.Source
	entities        map[int64]core.Entity
	tags            map[int64]core.Tag
	rawItems        map[int64]core.RawItem
	variants        map[int64]core.StoryVariant
	clusters        map[int64]core.Cluster
	clusterVariants map[int64]core.ClusterVariant
	clusterTags     map[int64]core.ClusterTag
	clusterEntities map[int64]core.ClusterEntity
	submissions     map[int64]core.Submission
	candidates      map[int64]core.CandidateSource
	validationLogs  map[int64]core.ValidationLog
	feedCache       map[string]core.FeedCacheEntry
	metrics         map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:         make(map[int64]core.Source),
		entities:        make(map[int64]core.Entity),
		tags:            make(map[int64]core.Tag),
		rawItems:        make(map[int64]core.RawItem),
		variants:        make(map[int64]core.StoryVariant),
		clusters:        make(map[int64]core.Cluster),
		clusterVariants: make(map[int64]core.ClusterVariant),
		clusterTags:     make(map[int64]core.ClusterTag),
		clusterEntities: make(map[int64]core.ClusterEntity),
		submissions:     make(map[int64]core.Submission),
		candidates:      make(map[int64]core.CandidateSource),
		validationLogs:  make(map[int64]core.ValidationLog),
		feedCache:       make(map[string]core.FeedCacheEntry),
		metrics:         make(map[string]int64),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) Sources() SourceRepository { return &memSourceRepo{m} }
func (m *MemoryStore) Entities() EntityRepository { return &memEntityRepo{m} }
func (m *MemoryStore) Tags() TagRepository { return &memTagRepo{m} }
func (m *MemoryStore) RawItems() RawItemRepository { return &memRawItemRepo{m} }
func (m *MemoryStore) Variants() StoryVariantRepository { return &memVariantRepo{m} }
func (m *MemoryStore) Clusters() ClusterRepository { return &memClusterRepo{m} }
func (m *MemoryStore) ClusterVariants() ClusterVariantRepository { return &memClusterVariantRepo{m} }
func (m *MemoryStore) ClusterTags() ClusterTagRepository { return &memClusterTagRepo{m} }
func (m *MemoryStore) ClusterEntities() ClusterEntityRepository { return &memClusterEntityRepo{m} }
func (m *MemoryStore) Submissions() SubmissionRepository { return &memSubmissionRepo{m} }
func (m *MemoryStore) CandidateSources() CandidateSourceRepository { return &memCandidateRepo{m} }
func (m *MemoryStore) ValidationLogs() ValidationLogRepository { return &memValidationLogRepo{m} }
func (m *MemoryStore) FeedCache() FeedCacheRepository { return &memFeedCacheRepo{m} }
func (m *MemoryStore) SiteMetrics() SiteMetricsRepository { return &memMetricsRepo{m} }

func (m *MemoryStore) Close() error               { return nil }
func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) BeginTx(context.Context) (Transaction, error) {
	return &memoryTx{m}, nil
}

// memoryTx writes through to the store. It exists so code exercising the
// transactional path runs unchanged against the memory backend.
type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) Commit() error   { return nil }
func (t *memoryTx) Rollback() error { return nil }

func (t *memoryTx) Variants() StoryVariantRepository { return t.store.Variants() }
func (t *memoryTx) Clusters() ClusterRepository { return t.store.Clusters() }
func (t *memoryTx) ClusterVariants() ClusterVariantRepository { return t.store.ClusterVariants() }
func (t *memoryTx) ClusterTags() ClusterTagRepository { return t.store.ClusterTags() }
func (t *memoryTx) ClusterEntities() ClusterEntityRepository { return t.store.ClusterEntities() }

type memSourceRepo struct{ s *MemoryStore }

func (r *memSourceRepo) Create(_ context.Context, source *core.Source) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sources {
		if existing.Name == source.Name {
			return ErrDuplicate
		}
	}
	source.ID = r.s.id()
	source.CreatedAt = time.Now().UTC()
	source.UpdatedAt = source.CreatedAt
	r.s.sources[source.ID] = *source
	return nil
}

func (r *memSourceRepo) Get(_ context.Context, id int64) (*core.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memSourceRepo) GetByName(_ context.Context, name string) (*core.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.sources {
		if s.Name == name {
			out := s
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memSourceRepo) ListApproved(_ context.Context) ([]core.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Source
	for _, s := range r.s.sources {
		if s.Status == core.SourceStatusApproved {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memSourceRepo) List(_ context.Context, opts ListOptions) ([]core.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Source
	for _, s := range r.s.sources {
		if status, ok := opts.Filter["status"]; ok && string(s.Status) != status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

func (r *memSourceRepo) Update(_ context.Context, source *core.Source) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sources[source.ID]; !ok {
		return ErrNotFound
	}
	source.UpdatedAt = time.Now().UTC()
	r.s.sources[source.ID] = *source
	return nil
}

func (r *memSourceRepo) RecordFetchSuccess(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sources[id]
	if !ok {
		return ErrNotFound
	}
	s.LastFetchedAt = &at
	s.FetchErrorCount = 0
	s.UpdatedAt = time.Now().UTC()
	r.s.sources[id] = s
	return nil
}

func (r *memSourceRepo) RecordFetchFailure(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sources[id]
	if !ok {
		return ErrNotFound
	}
	s.FetchErrorCount++
	s.UpdatedAt = time.Now().UTC()
	r.s.sources[id] = s
	return nil
}

type memEntityRepo struct{ s *MemoryStore }

func (r *memEntityRepo) Upsert(_ context.Context, entity *core.Entity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entity.Slug == "" {
		entity.Slug = core.MakeSlug(entity.Name)
	}
	for id, existing := range r.s.entities {
		if existing.Slug == entity.Slug {
			entity.ID = id
			entity.CreatedAt = existing.CreatedAt
			r.s.entities[id] = *entity
			return nil
		}
	}
	entity.ID = r.s.id()
	entity.CreatedAt = time.Now().UTC()
	r.s.entities[entity.ID] = *entity
	return nil
}

func (r *memEntityRepo) Get(_ context.Context, id int64) (*core.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *memEntityRepo) GetBySlug(_ context.Context, slug string) (*core.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entities {
		if e.Slug == slug {
			out := e
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memEntityRepo) ListAll(_ context.Context) ([]core.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]core.Entity, 0, len(r.s.entities))
	for _, e := range r.s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEntityRepo) ListByType(_ context.Context, entityType string) ([]core.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Entity
	for _, e := range r.s.entities {
		if e.EntityType == entityType {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEntityRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.entities[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.entities, id)
	return nil
}

type memTagRepo struct{ s *MemoryStore }

func (r *memTagRepo) GetOrCreate(_ context.Context, name string) (*core.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slug := core.MakeSlug(name)
	for _, t := range r.s.tags {
		if t.Slug == slug {
			out := t
			return &out, nil
		}
	}
	tag := core.Tag{ID: r.s.id(), Name: name, Slug: slug, CreatedAt: time.Now().UTC()}
	r.s.tags[tag.ID] = tag
	return &tag, nil
}

func (r *memTagRepo) GetBySlug(_ context.Context, slug string) (*core.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tags {
		if t.Slug == slug {
			out := t
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

type memRawItemRepo struct{ s *MemoryStore }

func (r *memRawItemRepo) Create(_ context.Context, item *core.RawItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rawItems {
		if item.SourceItemID != "" && existing.SourceID == item.SourceID && existing.SourceItemID == item.SourceItemID {
			return ErrDuplicate
		}
		if existing.CanonicalURL == item.CanonicalURL {
			return ErrDuplicate
		}
		if existing.IngestHash == item.IngestHash {
			return ErrDuplicate
		}
	}
	item.ID = r.s.id()
	item.CreatedAt = time.Now().UTC()
	r.s.rawItems[item.ID] = *item
	return nil
}

func (r *memRawItemRepo) Get(_ context.Context, id int64) (*core.RawItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.rawItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (r *memRawItemRepo) GetBySourceItem(_ context.Context, sourceID int64, sourceItemID string) (*core.RawItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.rawItems {
		if item.SourceID == sourceID && item.SourceItemID == sourceItemID && sourceItemID != "" {
			out := item
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRawItemRepo) GetByCanonicalURL(_ context.Context, url string) (*core.RawItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.rawItems {
		if item.CanonicalURL == url {
			out := item
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRawItemRepo) GetByIngestHash(_ context.Context, hash string) (*core.RawItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.rawItems {
		if item.IngestHash == hash {
			out := item
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRawItemRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, item := range r.s.rawItems {
		if item.FetchedAt.Before(cutoff) {
			delete(r.s.rawItems, id)
			// Cascade like the schema does.
			for vid, v := range r.s.variants {
				if v.RawItemID == id {
					r.s.deleteVariantLocked(vid)
				}
			}
			for lid, l := range r.s.validationLogs {
				if l.RawItemID == id {
					delete(r.s.validationLogs, lid)
				}
			}
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) deleteVariantLocked(variantID int64) {
	delete(m.variants, variantID)
	for cvid, cv := range m.clusterVariants {
		if cv.VariantID == variantID {
			delete(m.clusterVariants, cvid)
		}
	}
}

type memVariantRepo struct{ s *MemoryStore }

func (r *memVariantRepo) Create(_ context.Context, variant *core.StoryVariant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.variants {
		if existing.URL == variant.URL || existing.RawItemID == variant.RawItemID {
			return ErrDuplicate
		}
	}
	variant.ID = r.s.id()
	variant.CreatedAt = time.Now().UTC()
	r.s.variants[variant.ID] = *variant
	return nil
}

func (r *memVariantRepo) Get(_ context.Context, id int64) (*core.StoryVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.variants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (r *memVariantRepo) GetByURL(_ context.Context, url string) (*core.StoryVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.variants {
		if v.URL == url {
			out := v
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memVariantRepo) GetByRawItem(_ context.Context, rawItemID int64) (*core.StoryVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.variants {
		if v.RawItemID == rawItemID {
			out := v
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memVariantRepo) Update(_ context.Context, variant *core.StoryVariant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.variants[variant.ID]; !ok {
		return ErrNotFound
	}
	r.s.variants[variant.ID] = *variant
	return nil
}

func (r *memVariantRepo) ListByCluster(_ context.Context, clusterID int64) ([]core.StoryVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.StoryVariant
	for _, cv := range r.s.clusterVariants {
		if cv.ClusterID == clusterID {
			if v, ok := r.s.variants[cv.VariantID]; ok {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

type memClusterRepo struct{ s *MemoryStore }

func (r *memClusterRepo) Create(_ context.Context, cluster *core.Cluster) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cluster.ID = r.s.id()
	cluster.CreatedAt = time.Now().UTC()
	cluster.UpdatedAt = cluster.CreatedAt
	r.s.clusters[cluster.ID] = *cluster
	return nil
}

func (r *memClusterRepo) Get(_ context.Context, id int64) (*core.Cluster, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clusters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *memClusterRepo) Update(_ context.Context, cluster *core.Cluster) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clusters[cluster.ID]; !ok {
		return ErrNotFound
	}
	cluster.UpdatedAt = time.Now().UTC()
	r.s.clusters[cluster.ID] = *cluster
	return nil
}

func (r *memClusterRepo) ListActiveSince(_ context.Context, cutoff time.Time) ([]core.Cluster, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Cluster
	for _, c := range r.s.clusters {
		if c.Status == core.ClusterStatusActive && !c.FirstSeenAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memClusterRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clusters[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.clusters, id)
	for cvid, cv := range r.s.clusterVariants {
		if cv.ClusterID == id {
			delete(r.s.clusterVariants, cvid)
		}
	}
	for ctid, ct := range r.s.clusterTags {
		if ct.ClusterID == id {
			delete(r.s.clusterTags, ctid)
		}
	}
	for ceid, ce := range r.s.clusterEntities {
		if ce.ClusterID == id {
			delete(r.s.clusterEntities, ceid)
		}
	}
	return nil
}

func (r *memClusterRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, c := range r.s.clusters {
		if !c.LastSeenAt.Before(cutoff) {
			continue
		}
		delete(r.s.clusters, id)
		deleted++
		for cvid, cv := range r.s.clusterVariants {
			if cv.ClusterID == id {
				delete(r.s.clusterVariants, cvid)
			}
		}
		for ctid, ct := range r.s.clusterTags {
			if ct.ClusterID == id {
				delete(r.s.clusterTags, ctid)
			}
		}
		for ceid, ce := range r.s.clusterEntities {
			if ce.ClusterID == id {
				delete(r.s.clusterEntities, ceid)
			}
		}
	}
	return deleted, nil
}

type memClusterVariantRepo struct{ s *MemoryStore }

func (r *memClusterVariantRepo) Link(_ context.Context, link *core.ClusterVariant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.clusterVariants {
		if existing.ClusterID == link.ClusterID && existing.VariantID == link.VariantID {
			return nil
		}
	}
	link.ID = r.s.id()
	link.CreatedAt = time.Now().UTC()
	r.s.clusterVariants[link.ID] = *link
	return nil
}

func (r *memClusterVariantRepo) ListByCluster(_ context.Context, clusterID int64) ([]core.ClusterVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.ClusterVariant
	for _, cv := range r.s.clusterVariants {
		if cv.ClusterID == clusterID {
			out = append(out, cv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memClusterVariantRepo) GetByVariant(_ context.Context, variantID int64) (*core.ClusterVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cv := range r.s.clusterVariants {
		if cv.VariantID == variantID {
			out := cv
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memClusterVariantRepo) DeleteByCluster(_ context.Context, clusterID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, cv := range r.s.clusterVariants {
		if cv.ClusterID == clusterID {
			delete(r.s.clusterVariants, id)
			deleted++
		}
	}
	return deleted, nil
}

type memClusterTagRepo struct{ s *MemoryStore }

func (r *memClusterTagRepo) Link(_ context.Context, clusterID, tagID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.clusterTags {
		if existing.ClusterID == clusterID && existing.TagID == tagID {
			return nil
		}
	}
	id := r.s.id()
	r.s.clusterTags[id] = core.ClusterTag{ID: id, ClusterID: clusterID, TagID: tagID}
	return nil
}

func (r *memClusterTagRepo) ListByCluster(_ context.Context, clusterID int64) ([]core.ClusterTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.ClusterTag
	for _, ct := range r.s.clusterTags {
		if ct.ClusterID == clusterID {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memClusterTagRepo) DeleteByCluster(_ context.Context, clusterID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ct := range r.s.clusterTags {
		if ct.ClusterID == clusterID {
			delete(r.s.clusterTags, id)
		}
	}
	return nil
}

type memClusterEntityRepo struct{ s *MemoryStore }

func (r *memClusterEntityRepo) Link(_ context.Context, clusterID, entityID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.clusterEntities {
		if existing.ClusterID == clusterID && existing.EntityID == entityID {
			return nil
		}
	}
	id := r.s.id()
	r.s.clusterEntities[id] = core.ClusterEntity{ID: id, ClusterID: clusterID, EntityID: entityID}
	return nil
}

func (r *memClusterEntityRepo) ListByCluster(_ context.Context, clusterID int64) ([]core.ClusterEntity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.ClusterEntity
	for _, ce := range r.s.clusterEntities {
		if ce.ClusterID == clusterID {
			out = append(out, ce)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memClusterEntityRepo) DeleteByCluster(_ context.Context, clusterID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ce := range r.s.clusterEntities {
		if ce.ClusterID == clusterID {
			delete(r.s.clusterEntities, id)
		}
	}
	return nil
}

func (r *memClusterEntityRepo) DeleteByEntity(_ context.Context, entityID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, ce := range r.s.clusterEntities {
		if ce.EntityID == entityID {
			delete(r.s.clusterEntities, id)
			deleted++
		}
	}
	return deleted, nil
}

type memSubmissionRepo struct{ s *MemoryStore }

func (r *memSubmissionRepo) Create(_ context.Context, submission *core.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	submission.ID = r.s.id()
	submission.CreatedAt = time.Now().UTC()
	r.s.submissions[submission.ID] = *submission
	return nil
}

func (r *memSubmissionRepo) Get(_ context.Context, id int64) (*core.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memSubmissionRepo) Update(_ context.Context, submission *core.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.submissions[submission.ID]; !ok {
		return ErrNotFound
	}
	r.s.submissions[submission.ID] = *submission
	return nil
}

func (r *memSubmissionRepo) CountByIPSince(_ context.Context, ip string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, s := range r.s.submissions {
		if s.SubmitterIP == ip && !s.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memSubmissionRepo) ListByStatus(_ context.Context, status core.SubmissionStatus, limit int) ([]core.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Submission
	for _, s := range r.s.submissions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memCandidateRepo struct{ s *MemoryStore }

func (r *memCandidateRepo) Create(_ context.Context, candidate *core.CandidateSource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.candidates {
		if existing.Domain == candidate.Domain {
			return ErrDuplicate
		}
	}
	candidate.ID = r.s.id()
	candidate.CreatedAt = time.Now().UTC()
	candidate.UpdatedAt = candidate.CreatedAt
	r.s.candidates[candidate.ID] = *candidate
	return nil
}

func (r *memCandidateRepo) GetByDomain(_ context.Context, domain string) (*core.CandidateSource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.candidates {
		if c.Domain == domain {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memCandidateRepo) Update(_ context.Context, candidate *core.CandidateSource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.candidates[candidate.ID]; !ok {
		return ErrNotFound
	}
	candidate.UpdatedAt = time.Now().UTC()
	r.s.candidates[candidate.ID] = *candidate
	return nil
}

func (r *memCandidateRepo) List(_ context.Context, opts ListOptions) ([]core.CandidateSource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.CandidateSource
	for _, c := range r.s.candidates {
		if status, ok := opts.Filter["status"]; ok && string(c.Status) != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimesSubmitted != out[j].TimesSubmitted {
			return out[i].TimesSubmitted > out[j].TimesSubmitted
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, opts), nil
}

type memValidationLogRepo struct{ s *MemoryStore }

func (r *memValidationLogRepo) Create(_ context.Context, log *core.ValidationLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = r.s.id()
	log.CreatedAt = time.Now().UTC()
	r.s.validationLogs[log.ID] = *log
	return nil
}

func (r *memValidationLogRepo) ListByRawItem(_ context.Context, rawItemID int64) ([]core.ValidationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.ValidationLog
	for _, l := range r.s.validationLogs {
		if l.RawItemID == rawItemID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memValidationLogRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, l := range r.s.validationLogs {
		if l.CreatedAt.Before(cutoff) {
			delete(r.s.validationLogs, id)
			deleted++
		}
	}
	return deleted, nil
}

type memFeedCacheRepo struct{ s *MemoryStore }

func (r *memFeedCacheRepo) Get(_ context.Context, key string) (*core.FeedCacheEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.feedCache[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *memFeedCacheRepo) Set(_ context.Context, entry *core.FeedCacheEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.feedCache[entry.CacheKey]; ok {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	} else {
		entry.ID = r.s.id()
		entry.CreatedAt = time.Now().UTC()
	}
	r.s.feedCache[entry.CacheKey] = *entry
	return nil
}

func (r *memFeedCacheRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for key, e := range r.s.feedCache {
		if e.ExpiresAt.Before(now) {
			delete(r.s.feedCache, key)
			deleted++
		}
	}
	return deleted, nil
}

type memMetricsRepo struct{ s *MemoryStore }

func (r *memMetricsRepo) Increment(_ context.Context, key string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.metrics[strings.ToLower(key)] += delta
	return nil
}

func (r *memMetricsRepo) Get(_ context.Context, key string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.metrics[strings.ToLower(key)], nil
}

func paginate[T any](items []T, opts ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

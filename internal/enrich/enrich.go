// Package enrich turns raw fetched items into clustered story variants. It
// runs the relevance filter, tokenizes and matches entities, classifies the
// event, and hands the variant to the clusterer.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sharkwire/internal/classify"
	"sharkwire/internal/clusterer"
	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
	"sharkwire/internal/relevance"
	"sharkwire/internal/textnorm"
)

// Config bundles the settings of the pipeline stages.
type Config struct {
	Relevance relevance.Config
	Cluster   clusterer.Config

	// NewLLMClient is handed to the relevance filter; nil disables the model.
	NewLLMClient func() relevance.LLMClient
}

// Result reports what processing a raw item produced.
type Result struct {
	Skipped        bool   // Item was rejected or already processed
	SkipReason     string // Why, when Skipped
	VariantID      int64
	ClusterID      int64
	ClusterCreated bool
}

// Pipeline processes raw items. A Pipeline is not safe for concurrent use;
// each worker holds its own so the lazily-built model handle stays private.
type Pipeline struct {
	store     persistence.Store
	cfg       Config
	filter    *relevance.Filter
	matcher   *textnorm.EntityMatcher
	clusterer *clusterer.Clusterer
}

// NewPipeline builds a pipeline over the store. The roster snapshot is loaded
// on first use.
func NewPipeline(store persistence.Store, cfg Config) *Pipeline {
	return &Pipeline{
		store:     store,
		cfg:       cfg,
		clusterer: clusterer.New(store, cfg.Cluster),
	}
}

// prepare loads the roster and builds the filter and matcher once.
func (p *Pipeline) prepare(ctx context.Context) error {
	if p.filter != nil {
		return nil
	}
	entities, err := p.store.Entities().ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roster entities: %w", err)
	}
	p.matcher = textnorm.NewEntityMatcher(entities, p.cfg.Relevance.TopicKeywords)
	p.filter = relevance.NewFilter(p.cfg.Relevance, p.store.ValidationLogs(), entities, p.cfg.NewLLMClient)
	return nil
}

// Process enriches one raw item. Rejection by the relevance filter and
// already-processed items are reported as skips, not errors; an error means
// infrastructure failed and the task may be retried.
func (p *Pipeline) Process(ctx context.Context, rawItemID int64) (*Result, error) {
	if err := p.prepare(ctx); err != nil {
		return nil, err
	}

	item, err := p.store.RawItems().Get(ctx, rawItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load raw item %d: %w", rawItemID, err)
	}
	source, err := p.store.Sources().Get(ctx, item.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %d: %w", item.SourceID, err)
	}

	// Re-running enrichment for an item that already has a variant is a no-op.
	if existing, err := p.store.Variants().GetByRawItem(ctx, item.ID); err == nil {
		return &Result{Skipped: true, SkipReason: "already processed", VariantID: existing.ID}, nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	relevant, err := p.filter.Check(ctx, item, source)
	if err != nil {
		return nil, err
	}
	if !relevant {
		logger.Debug("Raw item rejected as off topic", "raw_item_id", item.ID)
		return &Result{Skipped: true, SkipReason: "not relevant"}, nil
	}

	text := item.RawTitle
	if item.RawDescription != "" {
		text += " " + item.RawDescription
	}

	variant := &core.StoryVariant{
		RawItemID:    item.ID,
		SourceID:     source.ID,
		URL:          item.CanonicalURL,
		Title:        item.DisplayTitle(),
		ContentType:  contentType(source),
		PublishedAt:  publishedAt(item),
		Tokens:       textnorm.Tokenize(text),
		Entities:     p.matcher.Match(text),
		EventType:    classify.ClassifyEvent(text),
		SourceSignal: source.SourceSignal(),
		Status:       core.VariantStatusActive,
	}
	if err := p.store.Variants().Create(ctx, variant); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return &Result{Skipped: true, SkipReason: "variant url already known"}, nil
		}
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}

	cluster, created, err := p.clusterer.Assign(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster variant %d: %w", variant.ID, err)
	}

	if err := p.applyTags(ctx, cluster.ID, text, item.OriginalURL, source.Category); err != nil {
		return nil, err
	}

	p.recordMetrics(ctx, created)

	logger.Info("Enriched raw item",
		"raw_item_id", item.ID, "variant_id", variant.ID,
		"cluster_id", cluster.ID, "cluster_created", created,
		"event_type", string(variant.EventType))

	return &Result{
		VariantID:      variant.ID,
		ClusterID:      cluster.ID,
		ClusterCreated: created,
	}, nil
}

func (p *Pipeline) applyTags(ctx context.Context, clusterID int64, text, url string, category core.SourceCategory) error {
	for _, name := range classify.AssignTags(text, url, category) {
		tag, err := p.store.Tags().GetOrCreate(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if err := p.store.ClusterTags().Link(ctx, clusterID, tag.ID); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

func (p *Pipeline) recordMetrics(ctx context.Context, clusterCreated bool) {
	// Counters are best effort; a miss never fails the pipeline.
	if err := p.store.SiteMetrics().Increment(ctx, "variants_created", 1); err != nil {
		logger.Warn("Failed to bump variants_created", "error", err.Error())
	}
	if clusterCreated {
		if err := p.store.SiteMetrics().Increment(ctx, "clusters_created", 1); err != nil {
			logger.Warn("Failed to bump clusters_created", "error", err.Error())
		}
	}
}

// contentType reads the per-source override, defaulting to article.
func contentType(source *core.Source) core.ContentType {
	if v, ok := source.Metadata["content_type"].(string); ok && v != "" {
		return core.ContentType(v)
	}
	return core.ContentTypeArticle
}

// publishedAt falls back to the fetch time when the source did not carry a
// publication date.
func publishedAt(item *core.RawItem) time.Time {
	if item.PublishedAt != nil {
		return *item.PublishedAt
	}
	return item.FetchedAt
}

package ingest

import (
	"context"
	"errors"
	"fmt"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
	"sharkwire/internal/urlutil"
)

// createRawItem records a fetched item once. Dedup runs in order: external
// GUID, canonical URL, ingest hash. Re-seeing a known item returns the
// existing row with created=false.
func (i *Ingestor) createRawItem(ctx context.Context, source *core.Source, item FetchedItem) (*core.RawItem, bool, error) {
	canonical, err := urlutil.Normalize(item.URL)
	if err != nil {
		return nil, false, fmt.Errorf("item url %q not normalizable: %w", item.URL, err)
	}

	if item.SourceItemID != "" {
		existing, err := i.store.RawItems().GetBySourceItem(ctx, source.ID, item.SourceItemID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, false, err
		}
	}

	existing, err := i.store.RawItems().GetByCanonicalURL(ctx, canonical)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, false, err
	}

	hash := urlutil.IngestHash(source.ID, canonical, item.Title)
	existing, err = i.store.RawItems().GetByIngestHash(ctx, hash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, false, err
	}

	raw := &core.RawItem{
		SourceID:        source.ID,
		SourceItemID:    item.SourceItemID,
		IngestionOrigin: core.IngestionOriginScheduled,
		OriginalURL:     item.URL,
		CanonicalURL:    canonical,
		RawTitle:        item.Title,
		RawDescription:  item.Description,
		RawContent:      item.Content,
		PublishedAt:     item.PublishedAt,
		FetchedAt:       i.now().UTC(),
		IngestHash:      hash,
	}
	if err := i.store.RawItems().Create(ctx, raw); err != nil {
		// A concurrent worker may have inserted the same item between the
		// lookup and the insert.
		if errors.Is(err, persistence.ErrDuplicate) {
			if existing, lookupErr := i.store.RawItems().GetByCanonicalURL(ctx, canonical); lookupErr == nil {
				return existing, false, nil
			}
			if existing, lookupErr := i.store.RawItems().GetByIngestHash(ctx, hash); lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to create raw item: %w", err)
	}
	return raw, true, nil
}

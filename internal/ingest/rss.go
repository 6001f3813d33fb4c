package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
)

const maxFeedBytes = 10 << 20

// RSSFetcher fetches RSS/Atom feeds with conditional GET. ETag and
// Last-Modified validators are persisted per feed so unchanged feeds cost a
// 304.
type RSSFetcher struct {
	client *http.Client
	cache  persistence.FeedCacheRepository
	parser *gofeed.Parser
	ua     string
	ttl    time.Duration
	now    func() time.Time
}

// NewRSSFetcher creates an RSS fetcher backed by the given validator cache.
func NewRSSFetcher(cache persistence.FeedCacheRepository, cfg Config) *RSSFetcher {
	return &RSSFetcher{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		cache:  cache,
		parser: gofeed.NewParser(),
		ua:     cfg.UserAgent,
		ttl:    cfg.FeedCacheTTL,
		now:    time.Now,
	}
}

// Fetch retrieves and parses the source's feed. A 304 response yields an
// empty item list and no error.
func (f *RSSFetcher) Fetch(ctx context.Context, source *core.Source) ([]FetchedItem, error) {
	if source.FeedURL == "" {
		return nil, fmt.Errorf("source %d has no feed url", source.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)

	cacheKey := "feed:" + source.FeedURL
	if etag, lastModified := f.validators(ctx, cacheKey); etag != "" || lastModified != "" {
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		if lastModified != "" {
			req.Header.Set("If-Modified-Since", lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		logger.Debug("Feed not modified", "source_id", source.ID)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		// Some feeds carry broken encodings or stray control characters.
		sanitized := SanitizeXML(body)
		feed, err = f.parser.ParseString(string(sanitized))
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed: %w", err)
		}
		logger.Debug("Feed parsed after sanitizing", "source_id", source.ID)
	}

	f.storeValidators(ctx, cacheKey, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))

	items := make([]FetchedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}
		items = append(items, FetchedItem{
			SourceItemID: entry.GUID,
			URL:          entry.Link,
			Title:        entry.Title,
			Description:  entry.Description,
			Content:      entry.Content,
			PublishedAt:  entry.PublishedParsed,
		})
	}
	return items, nil
}

func (f *RSSFetcher) validators(ctx context.Context, key string) (etag, lastModified string) {
	entry, err := f.cache.Get(ctx, key)
	if err != nil || entry.IsExpired(f.now()) {
		return "", ""
	}
	if v, ok := entry.Payload["etag"].(string); ok {
		etag = v
	}
	if v, ok := entry.Payload["last_modified"].(string); ok {
		lastModified = v
	}
	return etag, lastModified
}

func (f *RSSFetcher) storeValidators(ctx context.Context, key, etag, lastModified string) {
	if etag == "" && lastModified == "" {
		return
	}
	entry := &core.FeedCacheEntry{
		CacheKey:  key,
		Payload:   map[string]any{"etag": etag, "last_modified": lastModified},
		ExpiresAt: f.now().Add(f.ttl),
	}
	if err := f.cache.Set(ctx, entry); err != nil {
		logger.Warn("Failed to store feed validators", "key", key, "error", err.Error())
	}
}

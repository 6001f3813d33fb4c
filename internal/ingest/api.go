package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sharkwire/internal/core"
)

// APIFetcher consumes a JSON endpoint returning an array of story objects.
// Field names are remapped through source metadata (field_id, field_title,
// field_url, field_description, field_published); each defaults to the
// conventional name.
type APIFetcher struct {
	client *http.Client
	ua     string
}

// NewAPIFetcher creates a generic JSON API fetcher.
func NewAPIFetcher(cfg Config) *APIFetcher {
	return &APIFetcher{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		ua:     cfg.UserAgent,
	}
}

// Fetch retrieves and maps the endpoint's items.
func (f *APIFetcher) Fetch(ctx context.Context, source *core.Source) ([]FetchedItem, error) {
	endpoint := source.FeedURL
	if endpoint == "" {
		endpoint = source.BaseURL
	}
	body, err := getJSON(ctx, f.client, f.ua, endpoint)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("endpoint did not return a JSON array: %w", err)
	}

	idField := metaField(source, "field_id", "id")
	titleField := metaField(source, "field_title", "title")
	urlField := metaField(source, "field_url", "url")
	descField := metaField(source, "field_description", "description")
	publishedField := metaField(source, "field_published", "published_at")

	var items []FetchedItem
	for _, rec := range records {
		item := FetchedItem{
			SourceItemID: stringField(rec, idField),
			URL:          stringField(rec, urlField),
			Title:        stringField(rec, titleField),
			Description:  stringField(rec, descField),
		}
		if item.URL == "" || item.Title == "" {
			continue
		}
		if ts := stringField(rec, publishedField); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				item.PublishedAt = &parsed
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// RedditFetcher reads a subreddit's /new.json listing. The feed URL points at
// the listing endpoint.
type RedditFetcher struct {
	client *http.Client
	ua     string
}

// NewRedditFetcher creates a Reddit listing fetcher.
func NewRedditFetcher(cfg Config) *RedditFetcher {
	return &RedditFetcher{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		ua:     cfg.UserAgent,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// Fetch retrieves the listing and maps posts to items. Stickied posts
// (megathreads, rules) are skipped. The permalink is the item URL so
// discussion posts dedup against themselves, not their outbound links.
func (f *RedditFetcher) Fetch(ctx context.Context, source *core.Source) ([]FetchedItem, error) {
	if source.FeedURL == "" {
		return nil, fmt.Errorf("source %d has no listing url", source.ID)
	}
	body, err := getJSON(ctx, f.client, f.ua, source.FeedURL)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	var items []FetchedItem
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Permalink == "" {
			continue
		}
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		items = append(items, FetchedItem{
			SourceItemID: post.ID,
			URL:          "https://www.reddit.com" + post.Permalink,
			Title:        post.Title,
			Description:  post.SelfText,
			PublishedAt:  &created,
		})
	}
	return items, nil
}

func getJSON(ctx context.Context, client *http.Client, ua, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return buf, nil
}

func metaField(source *core.Source, key, fallback string) string {
	if v, ok := source.Metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func stringField(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

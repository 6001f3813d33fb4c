package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sharkwire/internal/core"
)

// HTMLFetcher scrapes sources without feeds using per-source CSS selectors
// from source metadata:
//
//	item_selector         required, selects one element per story
//	title_selector        optional, defaults to the item's own text
//	link_selector         optional, defaults to the first <a> in the item
//	description_selector  optional
type HTMLFetcher struct {
	client *http.Client
	ua     string
}

// NewHTMLFetcher creates an HTML scrape fetcher.
func NewHTMLFetcher(cfg Config) *HTMLFetcher {
	return &HTMLFetcher{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		ua:     cfg.UserAgent,
	}
}

// Fetch scrapes the source page and extracts story items.
func (f *HTMLFetcher) Fetch(ctx context.Context, source *core.Source) ([]FetchedItem, error) {
	itemSelector, _ := source.Metadata["item_selector"].(string)
	if itemSelector == "" {
		return nil, fmt.Errorf("source %d has no item_selector in metadata", source.ID)
	}

	pageURL := source.BaseURL
	if v, ok := source.Metadata["scrape_url"].(string); ok && v != "" {
		pageURL = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("bad page url: %w", err)
	}

	titleSelector, _ := source.Metadata["title_selector"].(string)
	linkSelector, _ := source.Metadata["link_selector"].(string)
	descSelector, _ := source.Metadata["description_selector"].(string)

	var items []FetchedItem
	doc.Find(itemSelector).Each(func(_ int, sel *goquery.Selection) {
		item := extractItem(sel, base, titleSelector, linkSelector, descSelector)
		if item.URL == "" || item.Title == "" {
			return
		}
		items = append(items, item)
	})
	return items, nil
}

func extractItem(sel *goquery.Selection, base *url.URL, titleSelector, linkSelector, descSelector string) FetchedItem {
	var item FetchedItem

	linkNode := sel
	if linkSelector != "" {
		linkNode = sel.Find(linkSelector).First()
	} else if !sel.Is("a") {
		linkNode = sel.Find("a").First()
	}
	if href, ok := linkNode.Attr("href"); ok {
		item.URL = resolveLink(base, href)
	}

	if titleSelector != "" {
		item.Title = strings.TrimSpace(sel.Find(titleSelector).First().Text())
	}
	if item.Title == "" {
		item.Title = strings.TrimSpace(linkNode.Text())
	}
	if item.Title == "" {
		item.Title = strings.TrimSpace(sel.Text())
	}

	if descSelector != "" {
		item.Description = strings.TrimSpace(sel.Find(descSelector).First().Text())
	}

	// Scraped pages rarely expose a publication date; the fetch time is used
	// downstream when PublishedAt is absent.
	return item
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Sharks News</title>
    <link>https://example.com</link>
    <item>
      <title>Sharks sign Celebrini to extension</title>
      <link>https://example.com/celebrini-extension</link>
      <guid>https://example.com/celebrini-extension</guid>
      <description>Eight more years.</description>
      <pubDate>Tue, 10 Mar 2026 18:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Gamethread: Sharks at Kings</title>
      <link>https://example.com/gamethread</link>
      <guid>gamethread-129</guid>
      <description>Drop the puck.</description>
    </item>
  </channel>
</rss>`

func rssSource(feedURL string) *core.Source {
	return &core.Source{
		ID:           1,
		Name:         "Sharks News",
		IngestMethod: core.IngestMethodRSS,
		FeedURL:      feedURL,
		Status:       core.SourceStatusApproved,
	}
}

func TestRSSFetcherParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	f := NewRSSFetcher(persistence.NewMemoryStore().FeedCache(), testConfig())
	items, err := f.Fetch(context.Background(), rssSource(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != "Sharks sign Celebrini to extension" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].SourceItemID != "https://example.com/celebrini-extension" {
		t.Errorf("guid = %q", items[0].SourceItemID)
	}
	if items[0].PublishedAt == nil {
		t.Error("pubDate not parsed")
	}
	if items[1].PublishedAt != nil {
		t.Error("missing pubDate should stay nil")
	}
}

func TestRSSFetcherUsesConditionalGET(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	cache := persistence.NewMemoryStore().FeedCache()
	f := NewRSSFetcher(cache, testConfig())
	source := rssSource(server.URL)

	items, err := f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("first fetch got %d items, want 2", len(items))
	}

	items, err = f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if items != nil {
		t.Errorf("304 response should yield no items, got %d", len(items))
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want 2", requests)
	}
}

func TestRSSFetcherSanitizesBrokenFeed(t *testing.T) {
	// Named HTML entity and a control character, both fatal to XML parsers.
	broken := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Sharks News</title>
    <item>
      <title>Sharks &ndash; Kings recap` + "\x08" + `</title>
      <link>https://example.com/recap</link>
      <guid>recap-1</guid>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(broken))
	}))
	defer server.Close()

	f := NewRSSFetcher(persistence.NewMemoryStore().FeedCache(), testConfig())
	items, err := f.Fetch(context.Background(), rssSource(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].URL != "https://example.com/recap" {
		t.Errorf("url = %q", items[0].URL)
	}
}

func TestRSSFetcherErrorsOnHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewRSSFetcher(persistence.NewMemoryStore().FeedCache(), testConfig())
	if _, err := f.Fetch(context.Background(), rssSource(server.URL)); err == nil {
		t.Error("expected error on 500 response")
	}
}

package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sharkwire/internal/core"
)

func TestRedditFetcherMapsListing(t *testing.T) {
	listing := `{"data":{"children":[
		{"data":{"id":"abc","title":"Celebrini hat trick tonight","selftext":"What a game.","permalink":"/r/SanJoseSharks/comments/abc/celebrini/","created_utc":1770000000,"stickied":false}},
		{"data":{"id":"pin","title":"Rules","selftext":"","permalink":"/r/SanJoseSharks/comments/pin/rules/","created_utc":1770000000,"stickied":true}}
	]}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listing))
	}))
	defer server.Close()

	f := NewRedditFetcher(testConfig())
	source := &core.Source{ID: 1, IngestMethod: core.IngestMethodReddit, FeedURL: server.URL}

	items, err := f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (stickied post skipped)", len(items))
	}
	item := items[0]
	if item.SourceItemID != "abc" {
		t.Errorf("source item id = %q", item.SourceItemID)
	}
	if item.URL != "https://www.reddit.com/r/SanJoseSharks/comments/abc/celebrini/" {
		t.Errorf("url = %q", item.URL)
	}
	if item.PublishedAt == nil || item.PublishedAt.Unix() != 1770000000 {
		t.Errorf("published at = %v", item.PublishedAt)
	}
}

func TestAPIFetcherMapsConfiguredFields(t *testing.T) {
	payload := `[
		{"guid":"1","headline":"Sharks recall defenseman","href":"https://example.com/recall","summary":"Up from the Barracuda.","date":"2026-03-10T18:00:00Z"},
		{"guid":"2","headline":"","href":"https://example.com/empty"}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer server.Close()

	f := NewAPIFetcher(testConfig())
	source := &core.Source{
		ID:           1,
		IngestMethod: core.IngestMethodAPI,
		FeedURL:      server.URL,
		Metadata: map[string]any{
			"field_id":          "guid",
			"field_title":       "headline",
			"field_url":         "href",
			"field_description": "summary",
			"field_published":   "date",
		},
	}

	items, err := f.Fetch(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (titleless record skipped)", len(items))
	}
	if items[0].Title != "Sharks recall defenseman" || items[0].URL != "https://example.com/recall" {
		t.Errorf("mapped item = %+v", items[0])
	}
	if items[0].PublishedAt == nil {
		t.Error("published date not parsed")
	}
}

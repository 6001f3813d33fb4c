package submissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/persistence"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerIP = 2
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

func newTestService(t *testing.T) (*Service, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	return NewService(store, testConfig()), store
}

func pageServer(t *testing.T, title string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><meta property="og:title" content="%s"><meta property="og:description" content="A story."><title>fallback</title></head><body></body></html>`, title)
	}))
}

func TestSubmitAcceptsNewStory(t *testing.T) {
	server := pageServer(t, "Sharks sign Celebrini")
	defer server.Close()

	svc, store := newTestService(t)
	ctx := context.Background()

	var enqueued []int64
	svc.Enqueue = func(rawItemID, _ int64) { enqueued = append(enqueued, rawItemID) }

	submission, err := svc.Submit(ctx, server.URL+"/story?utm_source=x", "great read", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if submission.Status != core.SubmissionStatusReceived {
		t.Errorf("status = %q, want received until enrichment finishes", submission.Status)
	}
	if submission.RawItemID == nil {
		t.Fatal("submission should reference its raw item")
	}
	if submission.Domain != "127.0.0.1" {
		t.Errorf("domain = %q, want the submitted URL's host", submission.Domain)
	}

	raw, err := store.RawItems().Get(ctx, *submission.RawItemID)
	if err != nil {
		t.Fatal(err)
	}
	if raw.IngestionOrigin != core.IngestionOriginUserSubmitted {
		t.Errorf("origin = %q, want user_submitted", raw.IngestionOrigin)
	}
	if raw.RawTitle != "Sharks sign Celebrini" {
		t.Errorf("title = %q, want og:title content", raw.RawTitle)
	}

	source, err := store.Sources().Get(ctx, raw.SourceID)
	if err != nil {
		t.Fatal(err)
	}
	if source.Name != testConfig().SourceName {
		t.Errorf("source = %q, want reserved submissions source", source.Name)
	}
	if source.Status != core.SourceStatusCandidate {
		t.Errorf("reserved source status = %q, want candidate so fan-out skips it", source.Status)
	}

	if len(enqueued) != 1 || enqueued[0] != raw.ID {
		t.Errorf("enqueue calls = %v, want the raw item", enqueued)
	}
}

func TestSubmitEnforcesRateLimit(t *testing.T) {
	server := pageServer(t, "Some story")
	defer server.Close()

	svc, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < testConfig().RateLimitPerIP; i++ {
		url := fmt.Sprintf("%s/story-%d", server.URL, i)
		if _, err := svc.Submit(ctx, url, "", "10.0.0.9"); err != nil {
			t.Fatal(err)
		}
	}

	_, err := svc.Submit(ctx, server.URL+"/one-more", "", "10.0.0.9")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}

	// The refused submission must not be recorded.
	count, err := store.Submissions().CountByIPSince(ctx, "10.0.0.9", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != testConfig().RateLimitPerIP {
		t.Errorf("recorded submissions = %d, want %d", count, testConfig().RateLimitPerIP)
	}

	// A different IP is unaffected.
	if _, err := svc.Submit(ctx, server.URL+"/other-ip", "", "10.0.0.10"); err != nil {
		t.Errorf("other IP should pass: %v", err)
	}
}

func TestSubmitResolvesDuplicateToCluster(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	variant := &core.StoryVariant{
		RawItemID:   1,
		SourceID:    1,
		URL:         "https://example.com/story",
		Title:       "Sharks sign Celebrini",
		PublishedAt: time.Now().UTC(),
		Status:      core.VariantStatusActive,
	}
	if err := store.Variants().Create(ctx, variant); err != nil {
		t.Fatal(err)
	}
	cluster := &core.Cluster{
		Headline:    variant.Title,
		Status:      core.ClusterStatusActive,
		FirstSeenAt: variant.PublishedAt,
		LastSeenAt:  variant.PublishedAt,
		SourceCount: 1,
	}
	if err := store.Clusters().Create(ctx, cluster); err != nil {
		t.Fatal(err)
	}
	if err := store.ClusterVariants().Link(ctx, &core.ClusterVariant{
		ClusterID: cluster.ID, VariantID: variant.ID, SimilarityScore: 1.0,
	}); err != nil {
		t.Fatal(err)
	}

	submission, err := svc.Submit(ctx, "https://example.com/story?utm_source=twitter", "", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if submission.Status != core.SubmissionStatusDuplicate {
		t.Errorf("status = %q, want duplicate", submission.Status)
	}
	if submission.VariantID == nil || *submission.VariantID != variant.ID {
		t.Errorf("variant pointer = %v, want %d", submission.VariantID, variant.ID)
	}
	if submission.ClusterID == nil || *submission.ClusterID != cluster.ID {
		t.Errorf("cluster pointer = %v, want %d", submission.ClusterID, cluster.ID)
	}
	if submission.ProcessedAt == nil {
		t.Error("duplicate resolution should stamp processed_at")
	}
}

func TestSubmitRejectsUnreachablePage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Reserved TEST-NET address: connection fails fast.
	submission, err := svc.Submit(ctx, "http://192.0.2.1/story", "", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if submission.Status != core.SubmissionStatusRejected {
		t.Errorf("status = %q, want rejected", submission.Status)
	}
	if submission.RejectionReason == "" {
		t.Error("rejected submission should say why")
	}
	if submission.ProcessedAt == nil {
		t.Error("rejection should stamp processed_at")
	}
	if submission.RawItemID != nil {
		t.Error("no raw item should be created for an unreachable page")
	}

	// No candidate source either; the page never yielded a story.
	candidates, err := store.CandidateSources().List(ctx, persistence.ListOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Errorf("candidate sources = %d, want none", len(candidates))
	}
}

func TestCompleteEnrichment(t *testing.T) {
	server := pageServer(t, "Sharks story")
	defer server.Close()

	svc, store := newTestService(t)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, server.URL+"/story", "", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.CompleteEnrichment(ctx, submission.ID, 42, 7, true); err != nil {
		t.Fatal(err)
	}
	updated, err := store.Submissions().Get(ctx, submission.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != core.SubmissionStatusPublished {
		t.Errorf("status = %q, want published", updated.Status)
	}
	if updated.VariantID == nil || *updated.VariantID != 42 {
		t.Errorf("variant pointer = %v, want 42", updated.VariantID)
	}
	if updated.ClusterID == nil || *updated.ClusterID != 7 {
		t.Errorf("cluster pointer = %v, want 7", updated.ClusterID)
	}

	if err := svc.CompleteEnrichment(ctx, submission.ID, 0, 0, false); err != nil {
		t.Fatal(err)
	}
	updated, _ = store.Submissions().Get(ctx, submission.ID)
	if updated.Status != core.SubmissionStatusRejected {
		t.Errorf("status = %q, want rejected", updated.Status)
	}
}

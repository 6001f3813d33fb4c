package core

import (
	"testing"
	"time"
)

func TestMakeSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Macklin Celebrini", "macklin-celebrini"},
		{"J.T. Miller", "jt-miller"},
		{"  Leading  Spaces ", "leading-spaces"},
		{"O'Reilly", "oreilly"},
		{"already-a-slug", "already-a-slug"},
	}

	for _, tc := range cases {
		if got := MakeSlug(tc.name); got != tc.want {
			t.Errorf("MakeSlug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMakeSlugIdempotent(t *testing.T) {
	names := []string{"Jane Doe", "Marc-Edouard Vlasic", "William Eklund"}
	for _, name := range names {
		once := MakeSlug(name)
		twice := MakeSlug(once)
		if once != twice {
			t.Errorf("MakeSlug not idempotent for %q: %q != %q", name, once, twice)
		}
	}
}

func TestSourceSignal(t *testing.T) {
	cases := []struct {
		category SourceCategory
		want     int
	}{
		{SourceCategoryOfficial, 3},
		{SourceCategoryPress, 2},
		{SourceCategoryOther, 1},
		{SourceCategory("unknown"), 1},
	}

	for _, tc := range cases {
		s := Source{Category: tc.category}
		if got := s.SourceSignal(); got != tc.want {
			t.Errorf("SourceSignal for %q = %d, want %d", tc.category, got, tc.want)
		}
	}
}

func TestSkipRelevanceCheck(t *testing.T) {
	s := Source{Metadata: map[string]any{"skip_relevance_check": true}}
	if !s.SkipRelevanceCheck() {
		t.Error("expected skip_relevance_check=true to be honored")
	}

	s = Source{Metadata: map[string]any{"skip_relevance_check": "yes"}}
	if s.SkipRelevanceCheck() {
		t.Error("non-boolean skip_relevance_check should not count")
	}

	s = Source{}
	if s.SkipRelevanceCheck() {
		t.Error("missing metadata should not skip the relevance check")
	}
}

func TestRawItemDisplayTitle(t *testing.T) {
	r := RawItem{RawTitle: "Title", RawDescription: "Desc"}
	if got := r.DisplayTitle(); got != "Title" {
		t.Errorf("DisplayTitle = %q, want Title", got)
	}

	r = RawItem{RawDescription: "Desc"}
	if got := r.DisplayTitle(); got != "Desc" {
		t.Errorf("DisplayTitle = %q, want Desc", got)
	}

	r = RawItem{}
	if got := r.DisplayTitle(); got != "Untitled" {
		t.Errorf("DisplayTitle = %q, want Untitled", got)
	}
}

func TestFeedCacheEntryIsExpired(t *testing.T) {
	now := time.Now()
	entry := FeedCacheEntry{ExpiresAt: now.Add(time.Hour)}
	if entry.IsExpired(now) {
		t.Error("entry expiring in the future should not be expired")
	}
	if !entry.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("entry past its TTL should be expired")
	}
}

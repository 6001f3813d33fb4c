package submissions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
	"sharkwire/internal/urlutil"
)

// wellKnownFeedPaths are probed when the page does not advertise a feed.
var wellKnownFeedPaths = []string{
	"/feed",
	"/rss",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/feeds/posts/default",
}

// proposeCandidateSource records the submission's domain as a candidate
// source, or bumps its counter if already proposed. Domains an existing
// source already serves are not proposed. New domains get one RSS discovery
// attempt.
func (s *Service) proposeCandidateSource(ctx context.Context, submission *core.Submission) error {
	served, err := s.domainServed(ctx, submission.Domain)
	if err != nil {
		return err
	}
	if served {
		return nil
	}

	existing, err := s.store.CandidateSources().GetByDomain(ctx, submission.Domain)
	if err == nil {
		existing.TimesSubmitted++
		return s.store.CandidateSources().Update(ctx, existing)
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return err
	}

	baseURL := "https://" + submission.Domain
	feedURL, found := s.discoverFeed(ctx, baseURL)

	method := core.IngestMethodHTML
	if found {
		method = core.IngestMethodRSS
	}
	candidate := &core.CandidateSource{
		Domain:                submission.Domain,
		BaseURL:               baseURL,
		DiscoveredFromID:      &submission.ID,
		SuggestedCategory:     core.SourceCategoryOther,
		SuggestedIngestMethod: method,
		DiscoveredFeedURL:     feedURL,
		RSSDiscoveryAttempted: true,
		RSSDiscoverySuccess:   found,
		TimesSubmitted:        1,
		Status:                core.SourceStatusCandidate,
	}
	if err := s.store.CandidateSources().Create(ctx, candidate); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return nil
		}
		return err
	}
	logger.Info("Proposed candidate source", "domain", candidate.Domain,
		"feed_discovered", found)
	return nil
}

// domainServed reports whether any existing source's base or feed URL lives
// on the given domain.
func (s *Service) domainServed(ctx context.Context, domain string) (bool, error) {
	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		sources, err := s.store.Sources().List(ctx, persistence.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return false, fmt.Errorf("failed to list sources: %w", err)
		}
		for _, src := range sources {
			for _, u := range []string{src.BaseURL, src.FeedURL} {
				if u == "" {
					continue
				}
				if d, err := urlutil.Domain(u); err == nil && d == domain {
					return true, nil
				}
			}
		}
		if len(sources) < pageSize {
			return false, nil
		}
	}
}

// discoverFeed looks for an advertised feed link on the home page, then
// probes the well-known paths. A probed feed counts only if it parses and
// has entries.
func (s *Service) discoverFeed(ctx context.Context, baseURL string) (string, bool) {
	if advertised := s.advertisedFeed(ctx, baseURL); advertised != "" {
		if s.validateFeed(ctx, advertised) {
			return advertised, true
		}
	}
	for _, path := range wellKnownFeedPaths {
		candidate := strings.TrimRight(baseURL, "/") + path
		if s.validateFeed(ctx, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// advertisedFeed returns the href of the page's RSS/Atom <link> tag, if any.
func (s *Service) advertisedFeed(ctx context.Context, baseURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	href, ok := doc.Find(`link[type="application/rss+xml"]`).First().Attr("href")
	if !ok {
		href, ok = doc.Find(`link[type="application/atom+xml"]`).First().Attr("href")
	}
	if !ok || href == "" {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// validateFeed fetches and parses a candidate feed URL, requiring at least
// one entry.
func (s *Service) validateFeed(ctx context.Context, feedURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return false
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return false
	}
	if len(feed.Items) == 0 {
		logger.Debug("Feed candidate has no entries", "url", feedURL)
		return false
	}
	return true
}

// Package submissions accepts reader-submitted story URLs, deduplicates them
// against known variants, and proposes new domains as candidate sources.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
	"sharkwire/internal/urlutil"
)

// ErrRateLimited is returned when an IP exceeds its hourly submission budget.
var ErrRateLimited = errors.New("submission rate limit exceeded")

// Config controls submission handling.
type Config struct {
	RateLimitPerIP int           // Submissions per IP per hour
	SourceName     string        // Reserved source for user submissions
	RequestTimeout time.Duration // Metadata and discovery fetch timeout
	UserAgent      string
}

// DefaultConfig returns the standard submission settings.
func DefaultConfig() Config {
	return Config{
		RateLimitPerIP: 10,
		SourceName:     "User Submissions",
		RequestTimeout: 10 * time.Second,
		UserAgent:      "sharkwire/1.0 (+news aggregator)",
	}
}

// Service processes user submissions. Enqueue, when set, is called with the
// raw item ID of each accepted submission so the enrichment pipeline picks it
// up.
type Service struct {
	store   persistence.Store
	cfg     Config
	client  *http.Client
	Enqueue func(rawItemID, submissionID int64)
	now     func() time.Time
}

// NewService creates a submission service over the store.
func NewService(store persistence.Store, cfg Config) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		now:    time.Now,
	}
}

// Submit handles one submitted URL. The rate limit is checked before any row
// is written, so refused submissions never consume budget. Duplicates of
// known variants are recorded and resolved immediately; new URLs become raw
// items under the reserved source and are handed to enrichment.
func (s *Service) Submit(ctx context.Context, rawURL, note, ip string) (*core.Submission, error) {
	since := s.now().Add(-time.Hour)
	count, err := s.store.Submissions().CountByIPSince(ctx, ip, since)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= s.cfg.RateLimitPerIP {
		return nil, ErrRateLimited
	}

	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	domain, err := urlutil.Domain(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	submission := &core.Submission{
		URL:           rawURL,
		NormalizedURL: normalized,
		Domain:        domain,
		Note:          note,
		SubmitterIP:   ip,
		Status:        core.SubmissionStatusReceived,
	}
	if err := s.store.Submissions().Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	// A URL we already carry resolves instantly to its cluster.
	if existing, err := s.store.Variants().GetByURL(ctx, normalized); err == nil {
		return s.resolveDuplicate(ctx, submission, existing)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	title, description := s.fetchPageMetadata(ctx, rawURL)
	if title == "" {
		submission.Status = core.SubmissionStatusRejected
		submission.RejectionReason = "could not fetch page metadata"
		s.stampProcessed(submission)
		if err := s.store.Submissions().Update(ctx, submission); err != nil {
			return nil, err
		}
		logger.Warn("Submission rejected, page unreachable", "submission_id", submission.ID, "url", rawURL)
		return submission, nil
	}

	source, err := s.reservedSource(ctx)
	if err != nil {
		return nil, err
	}

	raw := &core.RawItem{
		SourceID:        source.ID,
		IngestionOrigin: core.IngestionOriginUserSubmitted,
		OriginalURL:     rawURL,
		CanonicalURL:    normalized,
		RawTitle:        title,
		RawDescription:  description,
		FetchedAt:       s.now().UTC(),
		IngestHash:      urlutil.IngestHash(source.ID, normalized, title),
	}
	if err := s.store.RawItems().Create(ctx, raw); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			// Raw item exists but no variant yet: enrichment is still pending.
			submission.Status = core.SubmissionStatusDuplicate
			s.stampProcessed(submission)
			if err := s.store.Submissions().Update(ctx, submission); err != nil {
				return nil, err
			}
			return submission, nil
		}
		return nil, fmt.Errorf("failed to create raw item: %w", err)
	}

	submission.RawItemID = &raw.ID
	if err := s.store.Submissions().Update(ctx, submission); err != nil {
		return nil, err
	}

	if err := s.proposeCandidateSource(ctx, submission); err != nil {
		logger.Warn("Candidate source proposal failed", "domain", submission.Domain, "error", err.Error())
	}

	if s.Enqueue != nil {
		s.Enqueue(raw.ID, submission.ID)
	}
	logger.Info("Submission accepted", "submission_id", submission.ID,
		"raw_item_id", raw.ID, "domain", submission.Domain)
	return submission, nil
}

// CompleteEnrichment records the outcome of enriching a submitted item.
func (s *Service) CompleteEnrichment(ctx context.Context, submissionID, variantID, clusterID int64, published bool) error {
	submission, err := s.store.Submissions().Get(ctx, submissionID)
	if err != nil {
		return err
	}
	if published {
		submission.Status = core.SubmissionStatusPublished
		submission.VariantID = &variantID
		submission.ClusterID = &clusterID
	} else {
		submission.Status = core.SubmissionStatusRejected
		submission.RejectionReason = "not relevant to the topic"
	}
	s.stampProcessed(submission)
	return s.store.Submissions().Update(ctx, submission)
}

func (s *Service) resolveDuplicate(ctx context.Context, submission *core.Submission, variant *core.StoryVariant) (*core.Submission, error) {
	submission.Status = core.SubmissionStatusDuplicate
	submission.VariantID = &variant.ID
	if link, err := s.store.ClusterVariants().GetByVariant(ctx, variant.ID); err == nil {
		submission.ClusterID = &link.ClusterID
	}
	s.stampProcessed(submission)
	if err := s.store.Submissions().Update(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *Service) stampProcessed(submission *core.Submission) {
	at := s.now().UTC()
	submission.ProcessedAt = &at
}

// reservedSource returns the "User Submissions" source, creating it on first
// use. It stays in candidate status so the scheduled fetch fan-out never
// selects it.
func (s *Service) reservedSource(ctx context.Context) (*core.Source, error) {
	source, err := s.store.Sources().GetByName(ctx, s.cfg.SourceName)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}
	source = &core.Source{
		Name:         s.cfg.SourceName,
		Category:     core.SourceCategoryOther,
		IngestMethod: core.IngestMethodAPI,
		Status:       core.SourceStatusCandidate,
	}
	if err := s.store.Sources().Create(ctx, source); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return s.store.Sources().GetByName(ctx, s.cfg.SourceName)
		}
		return nil, err
	}
	return source, nil
}

// fetchPageMetadata pulls the page title and description, preferring Open
// Graph tags.
func (s *Service) fetchPageMetadata(ctx context.Context, pageURL string) (title, description string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", ""
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", ""
	}

	title = metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	description = metaContent(doc, `meta[property="og:description"]`)
	if description == "" {
		description = metaContent(doc, `meta[name="description"]`)
	}
	return title, description
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// Package relevance decides whether fetched items are about the tracked
// topic, writing one validation log row per decision.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sharkwire/internal/core"
	"sharkwire/internal/logger"
	"sharkwire/internal/persistence"
	"sharkwire/internal/textnorm"
)

// Config controls the filtering strategy.
type Config struct {
	LLMEnabled     bool     // Consult the model for the verdict
	EvaluationMode bool     // Keyword decides, model response shadow-logged
	TopicKeywords  []string // Title keywords that mark a story on topic
}

// Filter runs the relevance check for raw items. A Filter is not safe for
// concurrent use; each worker holds its own.
type Filter struct {
	cfg       Config
	logs      persistence.ValidationLogRepository
	matcher   *textnorm.EntityMatcher
	teamIDs   map[int64]bool
	newClient func() LLMClient
	llm       LLMClient
}

// NewFilter builds a filter over the current roster entities. newClient is
// invoked lazily the first time a model verdict is needed and again after any
// model failure; it may be nil when the model is disabled.
func NewFilter(cfg Config, logs persistence.ValidationLogRepository, entities []core.Entity, newClient func() LLMClient) *Filter {
	teamIDs := make(map[int64]bool)
	for _, e := range entities {
		if e.EntityType == core.EntityTypeTeam {
			teamIDs[e.ID] = true
		}
	}
	return &Filter{
		cfg:       cfg,
		logs:      logs,
		matcher:   textnorm.NewEntityMatcher(entities, cfg.TopicKeywords),
		teamIDs:   teamIDs,
		newClient: newClient,
	}
}

// Check decides whether the item is on topic and records the decision.
// Exactly one validation log row is written per call. Model failures never
// reject an item: the check fails open so a flaky model cannot drop stories.
func (f *Filter) Check(ctx context.Context, item *core.RawItem, source *core.Source) (bool, error) {
	if source.SkipRelevanceCheck() {
		log := &core.ValidationLog{
			RawItemID: item.ID,
			Method:    core.ValidationMethodSkip,
			Result:    core.ValidationResultApproved,
			Reason:    "source flagged skip_relevance_check",
		}
		if err := f.logs.Create(ctx, log); err != nil {
			return false, fmt.Errorf("failed to record validation: %w", err)
		}
		return true, nil
	}

	// Entities are scanned over the full text; keyword matching stays
	// title-only because aggregators inject unrelated snippets into
	// descriptions.
	title := item.DisplayTitle()
	text := title
	if item.RawDescription != "" {
		text += " " + item.RawDescription
	}
	entitiesFound := f.matcher.Match(text)
	keywordMatched := f.titleHasTopicKeyword(title)
	keywordRelevant := keywordMatched || f.hasNonTeamEntity(entitiesFound)

	if !f.cfg.LLMEnabled {
		return f.recordKeywordDecision(ctx, item, keywordMatched, keywordRelevant, entitiesFound, nil)
	}

	if f.cfg.EvaluationMode {
		shadow := f.shadowVerdict(ctx, item)
		return f.recordKeywordDecision(ctx, item, keywordMatched, keywordRelevant, entitiesFound, shadow)
	}

	return f.recordModelDecision(ctx, item, entitiesFound)
}

// shadowResult carries the model response recorded alongside a keyword
// decision in evaluation mode.
type shadowResult struct {
	response  string
	model     string
	latencyMs int64
	err       error
}

func (f *Filter) shadowVerdict(ctx context.Context, item *core.RawItem) *shadowResult {
	client, err := f.client(ctx)
	if err != nil {
		return &shadowResult{err: err}
	}

	start := time.Now()
	_, response, err := client.CheckRelevance(ctx, item.DisplayTitle(), item.RawDescription)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		f.resetClient()
		return &shadowResult{response: response, model: client.Model(), latencyMs: latency, err: err}
	}
	return &shadowResult{response: response, model: client.Model(), latencyMs: latency}
}

func (f *Filter) recordKeywordDecision(ctx context.Context, item *core.RawItem, keywordMatched, relevant bool, entitiesFound []int64, shadow *shadowResult) (bool, error) {
	result := core.ValidationResultRejected
	reason := "no topic keywords in title or roster entities in text"
	if relevant {
		result = core.ValidationResultApproved
		if keywordMatched {
			reason = "topic keyword in title"
		} else {
			reason = "roster entity in text"
		}
	}

	log := &core.ValidationLog{
		RawItemID:      item.ID,
		Method:         core.ValidationMethodKeyword,
		Result:         result,
		KeywordMatched: &keywordMatched,
		EntitiesFound:  entitiesFound,
		Reason:         reason,
	}
	if shadow != nil {
		log.LLMResponse = shadow.response
		log.LLMModel = shadow.model
		log.LatencyMs = shadow.latencyMs
		if shadow.err != nil {
			log.ErrorMessage = shadow.err.Error()
			logger.Warn("Shadow model check failed", "raw_item_id", item.ID, "error", shadow.err.Error())
		}
	}
	if err := f.logs.Create(ctx, log); err != nil {
		return false, fmt.Errorf("failed to record validation: %w", err)
	}
	return relevant, nil
}

func (f *Filter) recordModelDecision(ctx context.Context, item *core.RawItem, entitiesFound []int64) (bool, error) {
	log := &core.ValidationLog{
		RawItemID:     item.ID,
		Method:        core.ValidationMethodLLM,
		EntitiesFound: entitiesFound,
	}

	client, err := f.client(ctx)
	if err != nil {
		// Fail open: an unreachable model must not drop stories.
		log.Result = core.ValidationResultError
		log.ErrorMessage = err.Error()
		log.Reason = "model unavailable, failing open"
		logger.Warn("Model unavailable, failing open", "raw_item_id", item.ID, "error", err.Error())
		if logErr := f.logs.Create(ctx, log); logErr != nil {
			return false, fmt.Errorf("failed to record validation: %w", logErr)
		}
		return true, nil
	}

	start := time.Now()
	relevant, response, err := client.CheckRelevance(ctx, item.DisplayTitle(), item.RawDescription)
	log.LLMResponse = response
	log.LLMModel = client.Model()
	log.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		f.resetClient()
		log.Result = core.ValidationResultError
		log.ErrorMessage = err.Error()
		log.Reason = "model error, failing open"
		logger.Warn("Model check failed, failing open", "raw_item_id", item.ID, "error", err.Error())
		if logErr := f.logs.Create(ctx, log); logErr != nil {
			return false, fmt.Errorf("failed to record validation: %w", logErr)
		}
		return true, nil
	}

	if relevant {
		log.Result = core.ValidationResultApproved
		log.Reason = "model verdict YES"
	} else {
		log.Result = core.ValidationResultRejected
		log.Reason = "model verdict NO"
	}
	if err := f.logs.Create(ctx, log); err != nil {
		return false, fmt.Errorf("failed to record validation: %w", err)
	}
	return relevant, nil
}

// client returns the model handle, constructing and probing it on first use.
func (f *Filter) client(ctx context.Context) (LLMClient, error) {
	if f.llm != nil {
		return f.llm, nil
	}
	if f.newClient == nil {
		return nil, errors.New("no model client configured")
	}
	c := f.newClient()
	ok, err := c.IsAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("model backend returned unhealthy status")
	}
	f.llm = c
	return c, nil
}

func (f *Filter) resetClient() {
	f.llm = nil
}

func (f *Filter) titleHasTopicKeyword(title string) bool {
	lowered := strings.ToLower(title)
	for _, kw := range f.cfg.TopicKeywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (f *Filter) hasNonTeamEntity(entityIDs []int64) bool {
	for _, id := range entityIDs {
		if !f.teamIDs[id] {
			return true
		}
	}
	return false
}

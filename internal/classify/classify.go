// Package classify assigns event types and display tags to story text.
package classify

import (
	"strings"

	"sharkwire/internal/core"
)

// eventOrder is the tie-break order: when two categories score equally, the
// one listed first wins.
var eventOrder = []core.EventType{
	core.EventTypeTrade,
	core.EventTypeInjury,
	core.EventTypeLineup,
	core.EventTypeRecall,
	core.EventTypeWaiver,
	core.EventTypeSigning,
	core.EventTypeProspect,
	core.EventTypeGame,
	core.EventTypeOpinion,
}

var eventKeywords = map[core.EventType][]string{
	core.EventTypeTrade:    {"trade", "traded", "acquire", "acquired", "dealt"},
	core.EventTypeInjury:   {"injury", "injured", "injured reserve", "day-to-day", "out indefinitely", "week-to-week"},
	core.EventTypeLineup:   {"lineup", "lines", "starting", "scratched", "scratch"},
	core.EventTypeRecall:   {"recall", "recalled", "call up", "called up", "promote"},
	core.EventTypeWaiver:   {"waiver", "waivers", "claimed", "claim"},
	core.EventTypeSigning:  {"sign", "signed", "contract", "extension", "agree to terms"},
	core.EventTypeProspect: {"prospect", "draft", "drafted", "junior", "development"},
	core.EventTypeGame:     {"game", "win", "loss", "score", "final", "vs", "defeat", "beat", "period", "goal", "assist", "shutout", "overtime", "recap"},
	core.EventTypeOpinion:  {"think", "believe", "opinion", "analysis", "why", "should"},
}

// eventTagNames maps taggable event types to their display tag. Opinion
// pieces get no event tag.
var eventTagNames = map[core.EventType]string{
	core.EventTypeTrade:    "Trade",
	core.EventTypeInjury:   "Injury",
	core.EventTypeLineup:   "Lineup",
	core.EventTypeRecall:   "Recall",
	core.EventTypeWaiver:   "Waiver",
	core.EventTypeSigning:  "Signing",
	core.EventTypeProspect: "Prospect",
	core.EventTypeGame:     "Game",
}

// rumorPhrases mark speculative reporting. Combined with a press source they
// yield the Rumors tag.
var rumorPhrases = []string{
	"hearing", "sources say", "linked to", "in talks", "rumor", "reportedly",
}

// KeywordCounts returns, per event category, how many of its keywords appear
// in the text. Each keyword is a substring presence check counted at most
// once, so "signs" hits the "sign" keyword and repeats do not inflate the
// score.
func KeywordCounts(text string) map[core.EventType]int {
	lowered := strings.ToLower(text)
	counts := make(map[core.EventType]int, len(eventKeywords))
	for event, keywords := range eventKeywords {
		total := 0
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				total++
			}
		}
		if total > 0 {
			counts[event] = total
		}
	}
	return counts
}

// ClassifyEvent picks the event category with the most keyword hits. Ties go
// to the category listed first in the tie-break order; no hits at all yields
// EventTypeOther.
func ClassifyEvent(text string) core.EventType {
	counts := KeywordCounts(text)

	best := core.EventTypeOther
	bestCount := 0
	for _, event := range eventOrder {
		if counts[event] > bestCount {
			best = event
			bestCount = counts[event]
		}
	}
	return best
}

// AssignTags returns the display tags for a story: every event category with
// at least one keyword hit, the affiliate tag for Barracuda coverage, Rumors
// for speculative press pieces, and Official for official sources.
func AssignTags(text, url string, category core.SourceCategory) []string {
	lowered := strings.ToLower(text)
	counts := KeywordCounts(text)

	var tags []string
	for _, event := range eventOrder {
		if counts[event] > 0 {
			if name, ok := eventTagNames[event]; ok {
				tags = append(tags, name)
			}
		}
	}

	if strings.Contains(lowered, "barracuda") || strings.Contains(strings.ToLower(url), "sjbarracuda") {
		tags = append(tags, "Barracuda")
	}

	if category == core.SourceCategoryPress && containsRumorPhrase(lowered) {
		tags = append(tags, "Rumors")
	}

	if category == core.SourceCategoryOfficial {
		tags = append(tags, "Official")
	}

	return tags
}

func containsRumorPhrase(lowered string) bool {
	for _, phrase := range rumorPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

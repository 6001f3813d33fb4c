// Package textnorm normalizes story text into clustering tokens and matches
// roster entities against headlines and bodies.
package textnorm

import (
	"regexp"
	"strings"

	"sharkwire/internal/core"
)

var nonWordRe = regexp.MustCompile(`\W+`)

// stopwords excluded from clustering tokens.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "his": true, "how": true, "its": true, "new": true,
	"now": true, "old": true, "see": true, "two": true, "who": true,
	"did": true, "get": true, "him": true, "she": true, "too": true,
	"use": true, "will": true, "with": true, "this": true, "that": true,
	"from": true, "they": true, "have": true, "been": true, "were": true,
	"said": true, "each": true, "which": true, "their": true, "would": true,
	"there": true, "could": true, "other": true, "after": true, "before": true,
	"about": true, "into": true, "over": true, "under": true, "again": true,
	"more": true, "most": true, "some": true, "such": true, "only": true,
	"than": true, "then": true, "them": true, "these": true, "those": true,
	"what": true, "when": true, "where": true, "while": true, "your": true,
	"just": true, "also": true, "very": true, "here": true, "still": true,
	"being": true, "doing": true, "during": true, "against": true,
	"between": true, "because": true, "through": true, "should": true,
}

// Tokenize lowercases text, replaces every non-word run with a space, and
// drops stopwords and tokens shorter than three characters. Repeated tokens
// are kept; set semantics are the consumer's call.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := nonWordRe.ReplaceAllString(lowered, " ")

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// commonWordNames are surnames too ambiguous to match on their own.
var commonWordNames = map[string]bool{
	"white": true, "brown": true, "green": true, "black": true,
	"gray": true, "grey": true, "young": true, "king": true,
	"cook": true, "hill": true, "wood": true, "stone": true,
	"rice": true, "rose": true, "wolf": true, "fox": true,
	"burns": true, "powers": true, "waters": true, "fields": true,
	"banks": true, "cross": true, "church": true, "price": true,
	"best": true, "land": true, "day": true, "long": true,
	"strong": true, "power": true, "chase": true, "smith": true,
	"johnson": true, "jones": true, "miller": true, "wilson": true,
	"moore": true, "taylor": true,
}

// boundary is the character class treated as a word edge around an entity
// mention. Hyphens are deliberately not boundaries, so "Vlasic-era" does not
// count as a mention of Vlasic.
const boundary = `[\s,.:;!?'"()]`

// entityPattern holds the compiled mention patterns for one entity.
type entityPattern struct {
	entity   core.Entity
	fullName *regexp.Regexp
	lastName *regexp.Regexp // nil when last-name matching is disallowed
}

// EntityMatcher finds roster entity mentions in text.
type EntityMatcher struct {
	patterns      []entityPattern
	topicKeywords []string
}

// NewEntityMatcher compiles mention patterns for the given entities. Full
// names always match; a bare surname matches only for multi-word names whose
// last token is at least five characters and is not a common English word,
// and even then only when a topic keyword appears in the same text.
func NewEntityMatcher(entities []core.Entity, topicKeywords []string) *EntityMatcher {
	lowered := make([]string, 0, len(topicKeywords))
	for _, kw := range topicKeywords {
		lowered = append(lowered, strings.ToLower(kw))
	}

	m := &EntityMatcher{topicKeywords: lowered}
	for _, entity := range entities {
		p := entityPattern{
			entity:   entity,
			fullName: mentionPattern(entity.Name),
		}
		parts := strings.Fields(strings.ToLower(entity.Name))
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			if len(last) >= 5 && !commonWordNames[last] {
				p.lastName = mentionPattern(last)
			}
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// mentionPattern compiles a case-blind pattern matching term between word
// boundaries.
func mentionPattern(term string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.ToLower(term))
	return regexp.MustCompile(`(?:^|` + boundary + `)` + quoted + `(?:` + boundary + `|$)`)
}

// Match returns the IDs of entities mentioned in text, deduplicated in the
// order the matcher was built with.
func (m *EntityMatcher) Match(text string) []int64 {
	lowered := strings.ToLower(text)
	topicContext := m.hasTopicContext(lowered)

	seen := make(map[int64]bool)
	var found []int64
	for _, p := range m.patterns {
		if seen[p.entity.ID] {
			continue
		}
		if p.fullName.MatchString(lowered) {
			seen[p.entity.ID] = true
			found = append(found, p.entity.ID)
			continue
		}
		if p.lastName != nil && topicContext && p.lastName.MatchString(lowered) {
			seen[p.entity.ID] = true
			found = append(found, p.entity.ID)
		}
	}
	return found
}

// hasTopicContext reports whether any topic keyword appears in the text.
func (m *EntityMatcher) hasTopicContext(lowered string) bool {
	for _, kw := range m.topicKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

package classify

import (
	"reflect"
	"testing"

	"sharkwire/internal/core"
)

func TestClassifyEvent(t *testing.T) {
	cases := []struct {
		name string
		text string
		want core.EventType
	}{
		{
			name: "trade keywords",
			text: "Sharks acquire defenseman in three-team trade",
			want: core.EventTypeTrade,
		},
		{
			name: "injury keywords",
			text: "Celebrini day-to-day with lower-body injury",
			want: core.EventTypeInjury,
		},
		{
			name: "game recap",
			text: "Recap: Sharks beat Vegas 4-3 in overtime, Eklund scores the winning goal",
			want: core.EventTypeGame,
		},
		{
			name: "signing",
			text: "Sharks sign forward to two-year contract extension",
			want: core.EventTypeSigning,
		},
		{
			name: "recall",
			text: "Sharks recall goaltender from the Barracuda",
			want: core.EventTypeRecall,
		},
		{
			name: "no keywords",
			text: "Five things we noticed at practice today",
			want: core.EventTypeOther,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyEvent(tc.text); got != tc.want {
				t.Errorf("ClassifyEvent(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyEventTieBreak(t *testing.T) {
	// "signs" hits the signing keywords and "goalie" hits "goal" for game, one
	// apiece: signing is listed first and wins the tie.
	got := ClassifyEvent("Sharks signs veteran goalie")
	if got != core.EventTypeSigning {
		t.Errorf("tie should resolve to signing, got %q", got)
	}
}

func TestClassifyEventMajorityWins(t *testing.T) {
	// Three game hits outscore two trade hits.
	got := ClassifyEvent("traded the lead twice in an overtime game decided by a late goal")
	if got != core.EventTypeGame {
		t.Errorf("majority category should win, got %q", got)
	}
}

func TestKeywordCountsSubstringPresence(t *testing.T) {
	// Inflected forms count through substring match, but each keyword counts
	// at most once no matter how often it appears.
	counts := KeywordCounts("the winner signs after a win, win, win")
	if counts[core.EventTypeGame] != 1 {
		t.Errorf("game count = %d, want 1", counts[core.EventTypeGame])
	}
	if counts[core.EventTypeSigning] != 1 {
		t.Errorf("signing count = %d, want 1", counts[core.EventTypeSigning])
	}
}

func TestAssignTags(t *testing.T) {
	text := "Sharks acquire defenseman, injured reserve move follows"
	got := AssignTags(text, "https://example.com/story", core.SourceCategoryPress)
	want := []string{"Trade", "Injury"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssignTags = %v, want %v", got, want)
	}
}

func TestAssignTagsBarracuda(t *testing.T) {
	got := AssignTags("Goalie stops 30 in shutout win", "https://example.com/sjbarracuda/recap", core.SourceCategoryOther)
	want := []string{"Game", "Barracuda"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssignTags = %v, want %v", got, want)
	}
}

func TestAssignTagsRumorsRequiresPressSource(t *testing.T) {
	text := "Sharks reportedly in talks to acquire a top-four defenseman"

	got := AssignTags(text, "", core.SourceCategoryPress)
	if !contains(got, "Rumors") {
		t.Errorf("press source with rumor phrase should carry Rumors: %v", got)
	}

	got = AssignTags(text, "", core.SourceCategoryOther)
	if contains(got, "Rumors") {
		t.Errorf("non-press source should not carry Rumors: %v", got)
	}
}

func TestAssignTagsOfficial(t *testing.T) {
	got := AssignTags("Sharks sign defenseman", "", core.SourceCategoryOfficial)
	if !contains(got, "Official") {
		t.Errorf("official source should carry Official tag: %v", got)
	}
}

func contains(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

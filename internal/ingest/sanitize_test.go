package ingest

import (
	"strings"
	"testing"
)

func TestSanitizeXMLConvertsNamedEntities(t *testing.T) {
	got := string(SanitizeXML([]byte("Sharks &ndash; Kings &hellip; recap")))
	if strings.Contains(got, "&ndash;") || strings.Contains(got, "&hellip;") {
		t.Errorf("named entities survived: %q", got)
	}
	if !strings.Contains(got, "&#8211;") || !strings.Contains(got, "&#8230;") {
		t.Errorf("numeric references missing: %q", got)
	}
}

func TestSanitizeXMLStripsControlCharacters(t *testing.T) {
	got := string(SanitizeXML([]byte("ok\x00\x08\x1f end\ttab\nline\rcr")))
	if strings.ContainsAny(got, "\x00\x08\x1f") {
		t.Errorf("control characters survived: %q", got)
	}
	for _, keep := range []string{"\t", "\n", "\r"} {
		if !strings.Contains(got, keep) {
			t.Errorf("whitespace %q should be kept: %q", keep, got)
		}
	}
}

func TestSanitizeXMLRecoversWindows1252(t *testing.T) {
	// 0xE9 is é in both Latin-1 and Windows-1252, and invalid UTF-8 on its own.
	got := string(SanitizeXML([]byte{'c', 'a', 'f', 0xE9}))
	if got != "café" {
		t.Errorf("got %q, want %q", got, "café")
	}

	// 0x92 is a right single quote in Windows-1252; under Latin-1 it would
	// decode to a C1 control instead.
	got = string(SanitizeXML([]byte{'S', 'h', 'a', 'r', 'k', 's', 0x92, ' ', 'w', 'i', 'n'}))
	if got != "Sharks’ win" {
		t.Errorf("got %q, want %q", got, "Sharks’ win")
	}
}

func TestSanitizeXMLLeavesCleanInputAlone(t *testing.T) {
	in := "<title>Sharks win &amp; clinch</title>"
	if got := string(SanitizeXML([]byte(in))); got != in {
		t.Errorf("clean input changed: %q", got)
	}
}

package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// namedEntities maps HTML entities that XML parsers reject to their numeric
// form. Feeds produced by CMS templates frequently leak these.
var namedEntities = map[string]string{
	"&nbsp;":   "&#160;",
	"&iexcl;":  "&#161;",
	"&copy;":   "&#169;",
	"&laquo;":  "&#171;",
	"&reg;":    "&#174;",
	"&deg;":    "&#176;",
	"&raquo;":  "&#187;",
	"&frac12;": "&#189;",
	"&ndash;":  "&#8211;",
	"&mdash;":  "&#8212;",
	"&lsquo;":  "&#8216;",
	"&rsquo;":  "&#8217;",
	"&ldquo;":  "&#8220;",
	"&rdquo;":  "&#8221;",
	"&bull;":   "&#8226;",
	"&hellip;": "&#8230;",
	"&trade;":  "&#8482;",
}

var entityReplacer = newEntityReplacer()

func newEntityReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(namedEntities)*2)
	for from, to := range namedEntities {
		pairs = append(pairs, from, to)
	}
	return strings.NewReplacer(pairs...)
}

// SanitizeXML repairs common feed defects: non-UTF-8 bytes are reinterpreted
// as Windows-1252, HTML named entities are converted to numeric references,
// and control characters XML forbids are stripped. Windows-1252 is a superset
// of Latin-1 that maps the 0x80-0x9F range to punctuation instead of C1
// controls, which is what mis-encoded feeds actually carry there.
func SanitizeXML(data []byte) []byte {
	text := string(data)
	if !utf8.ValidString(text) {
		if decoded, err := charmap.Windows1252.NewDecoder().String(text); err == nil {
			text = decoded
		}
	}

	text = entityReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isXMLControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return []byte(b.String())
}

// isXMLControl reports control characters invalid in XML 1.0. Tab, LF, and CR
// stay.
func isXMLControl(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 0x20:
		return true
	case r == 0x7F:
		return true
	default:
		return false
	}
}

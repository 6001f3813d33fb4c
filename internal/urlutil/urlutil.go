// Package urlutil normalizes URLs and derives the deduplication keys used by
// the ingestion pipeline.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during normalization.
var trackingParams = map[string]bool{
	"ref":    true,
	"fbclid": true,
}

// Normalize canonicalizes a URL for deduplication: lowercases the scheme and
// host, drops the fragment, strips tracking parameters (utm_*, ref, fbclid),
// and re-encodes the remaining query in sorted-key order so parameter order
// cannot produce distinct canonical forms.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL missing scheme or host: %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	values := u.Query()
	kept := url.Values{}
	for key, vals := range values {
		lower := strings.ToLower(key)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			continue
		}
		for _, v := range vals {
			kept.Add(key, v)
		}
	}
	u.RawQuery = encodeSorted(kept)

	return u.String(), nil
}

// encodeSorted renders query values with keys in sorted order. url.Values.Encode
// already sorts keys, but values within a key keep insertion order, so this
// sorts those too for a fully deterministic form.
func encodeSorted(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Domain extracts the registrable host of a URL: lowercased, port removed,
// leading "www." stripped.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("URL has no host: %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// IngestHash computes the content-identity hash of a raw item:
// SHA-256 over "{source_id}:{canonical_url}:{title}".
func IngestHash(sourceID int64, canonicalURL, title string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", sourceID, canonicalURL, title)))
	return hex.EncodeToString(sum[:])
}

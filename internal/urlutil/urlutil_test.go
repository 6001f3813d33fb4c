package urlutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm parameters",
			in:   "https://example.com/story?utm_source=twitter&utm_medium=social",
			want: "https://example.com/story",
		},
		{
			name: "strips fragment",
			in:   "https://example.com/story#comments",
			want: "https://example.com/story",
		},
		{
			name: "strips ref and fbclid",
			in:   "https://example.com/story?ref=homepage&fbclid=abc123",
			want: "https://example.com/story",
		},
		{
			name: "keeps meaningful params in sorted order",
			in:   "https://example.com/story?b=2&a=1",
			want: "https://example.com/story?a=1&b=2",
		},
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Story",
			want: "https://example.com/Story",
		},
		{
			name: "mixed tracking and meaningful params",
			in:   "https://example.com/story?utm_campaign=x&id=42&ref=y",
			want: "https://example.com/story?id=42",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeOrderInsensitive(t *testing.T) {
	a, err := Normalize("https://example.com/story?a=1&b=2")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize("https://example.com/story?b=2&a=1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("parameter order changed canonical form: %q vs %q", a, b)
	}
}

func TestNormalizeRejectsRelativeURL(t *testing.T) {
	if _, err := Normalize("/just/a/path"); err == nil {
		t.Error("expected error for URL without scheme or host")
	}
}

func TestDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/story", "example.com"},
		{"https://blog.example.com:8080/x", "blog.example.com"},
		{"http://EXAMPLE.com", "example.com"},
	}
	for _, tc := range cases {
		got, err := Domain(tc.in)
		if err != nil {
			t.Fatalf("Domain(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Domain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIngestHashDeterministic(t *testing.T) {
	h1 := IngestHash(7, "https://example.com/story", "Big Trade")
	h2 := IngestHash(7, "https://example.com/story", "Big Trade")
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}

	if IngestHash(8, "https://example.com/story", "Big Trade") == h1 {
		t.Error("different source must produce a different hash")
	}
	if IngestHash(7, "https://example.com/story", "") == h1 {
		t.Error("different title must produce a different hash")
	}
}

package briefs

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNormalizeTitleAndURL(t *testing.T) {
	cases := []struct {
		name          string
		url           string
		title         string
		wantNormURL   string
		wantNormTitle string
	}{
		{"simple", "https://example.com/path", "Hello World", "https://example.com/path", "hello world"},
		{"utm and fragment", "https://example.com/path?utm_source=feed#section", "  Hello   World  ", "https://example.com/path", "hello world"},
		{"uppercase host", "HTTP://Example.COM/", "TiTle", "http://example.com", "title"},
		{"tracking params", "https://example.com/?fbclid=XYZ&gclid=ABC&utm_medium=1", "T", "https://example.com", "t"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if nu := normalizeURL(c.url); nu != c.wantNormURL {
				t.Fatalf("normalizeURL(%q) = %q; want %q", c.url, nu, c.wantNormURL)
			}
			if nt := normalizeTitle(c.title); nt != c.wantNormTitle {
				t.Fatalf("normalizeTitle(%q) = %q; want %q", c.title, nt, c.wantNormTitle)
			}
		})
	}

	if ItemKey("https://example.com/a?utm_source=x", "Story") != ItemKey("https://EXAMPLE.com/a", "  story ") {
		t.Fatal("tracking variants should share a key")
	}
}

type memorySeen struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memorySeen) Seen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], m.err
}

func (m *memorySeen) Mark(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func TestSkipSeenImportsOnlyNewItems(t *testing.T) {
	seen := &memorySeen{keys: map[string]bool{}}
	imp := NewImporter(WithSeenFilter(seen))
	ctx := context.Background()

	first, err := imp.FromString(ctx, sampleFeed, ImportRequest{MaxItems: 1, SkipSeen: true})
	if err != nil || len(first) != 1 {
		t.Fatalf("first import = %d, %v", len(first), err)
	}

	second, err := imp.FromString(ctx, sampleFeed, ImportRequest{MaxItems: 2, SkipSeen: true})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if len(second) != 2 || second[0].Title == first[0].Title {
		t.Fatalf("second import = %+v", second)
	}

	all, _ := imp.FromString(ctx, sampleFeed, ImportRequest{MaxItems: 3})
	if len(all) != 3 {
		t.Fatalf("without SkipSeen got %d briefs", len(all))
	}

	seen.err = errors.New("redis down")
	degraded, _ := imp.FromString(ctx, sampleFeed, ImportRequest{MaxItems: 3, SkipSeen: true})
	if len(degraded) != 3 {
		t.Fatalf("filter errors should not drop items, got %d", len(degraded))
	}
}

func TestBloomBool(t *testing.T) {
	for _, tc := range []struct {
		in   interface{}
		want bool
	}{{int64(1), true}, {int64(0), false}, {true, true}, {"1", true}} {
		got, err := bloomBool(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("bloomBool(%v) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := bloomBool(3.5); err == nil {
		t.Fatal("expected error for float response")
	}
}

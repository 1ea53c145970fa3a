package briefs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reelforge/types"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const (
	WorkerCount       = 5
	DefaultMaxItems   = 10
	DefaultDurationMs = 30000
	DefaultCategory   = "news"
	extractorTimeout  = 30 * time.Second
	maxScriptRunes    = 1200
)

// ImportRequest describes which feed items become briefs and how.
type ImportRequest struct {
	Feed       string       `json:"feed"`
	MaxItems   int          `json:"max_items,omitempty"`
	Extract    bool         `json:"extract,omitempty"`
	DurationMs int64        `json:"duration_ms,omitempty"`
	Category   string       `json:"category,omitempty"`
	Pacing     types.Pacing `json:"pacing,omitempty"`
	// SkipSeen drops items an earlier import already returned.
	SkipSeen bool `json:"skip_seen,omitempty"`
}

// ExtractFunc returns the readable text of the page at url.
type ExtractFunc func(ctx context.Context, url string) (string, error)

// Importer turns feed items into content briefs.
type Importer struct {
	parser  *gofeed.Parser
	extract ExtractFunc
	seen    SeenFilter
}

// Option configures an Importer.
type Option func(*Importer)

// WithExtractor replaces full-text extraction.
func WithExtractor(fn ExtractFunc) Option {
	return func(i *Importer) { i.extract = fn }
}

// WithSeenFilter remembers imported items so later imports can skip them.
func WithSeenFilter(f SeenFilter) Option {
	return func(i *Importer) { i.seen = f }
}

// NewImporter creates an importer that extracts articles with readability.
func NewImporter(opts ...Option) *Importer {
	i := &Importer{parser: gofeed.NewParser(), extract: readabilityText}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// FromFeed fetches the feed and returns one brief per item.
func (i *Importer) FromFeed(ctx context.Context, req ImportRequest) ([]types.Brief, error) {
	if strings.TrimSpace(req.Feed) == "" {
		return nil, errors.New("feed URL is required")
	}
	url := ResolveFeed(req.Feed)
	feed, err := i.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return i.fromParsed(ctx, feed, req), nil
}

// FromString parses a feed document that is already in memory.
func (i *Importer) FromString(ctx context.Context, data string, req ImportRequest) ([]types.Brief, error) {
	feed, err := i.parser.ParseString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return i.fromParsed(ctx, feed, req), nil
}

func (i *Importer) fromParsed(ctx context.Context, feed *gofeed.Feed, req ImportRequest) []types.Brief {
	limit := req.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	briefs := make([]types.Brief, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		if len(briefs) == limit {
			break
		}
		key := ItemKey(item.Link, item.Title)
		if req.SkipSeen && i.seen != nil {
			seen, err := i.seen.Seen(ctx, key)
			if err != nil {
				log.Printf("⚠️  Seen filter unavailable for %q: %v", item.Title, err)
			} else if seen {
				continue
			}
		}
		briefs = append(briefs, itemBrief(item, req))
		if i.seen != nil {
			if err := i.seen.Mark(ctx, key); err != nil {
				log.Printf("⚠️  Failed to remember %q: %v", item.Title, err)
			}
		}
	}
	if req.Extract {
		i.extractAll(ctx, briefs)
	}
	log.Printf("📰 Imported %d brief(s) from %s", len(briefs), feed.Title)
	return briefs
}

func itemBrief(item *gofeed.Item, req ImportRequest) types.Brief {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	b := types.Brief{
		ID:         briefID(id),
		Title:      strings.TrimSpace(item.Title),
		Script:     clip(plainText(summary)),
		DurationMs: req.DurationMs,
		Category:   req.Category,
		Pacing:     req.Pacing,
		Hook:       strings.TrimSpace(item.Title),
		SourceURL:  item.Link,
	}
	if b.DurationMs <= 0 {
		b.DurationMs = DefaultDurationMs
	}
	if b.Category == "" {
		b.Category = DefaultCategory
	}
	if b.Script == "" {
		b.Script = b.Title
	}
	if item.Image != nil && item.Image.URL != "" {
		b.Assets = append(b.Assets, types.Asset{Path: item.Image.URL, Kind: "image"})
	}
	return b
}

// extractAll replaces each script with the article's full text using a
// worker pool. Failures keep the feed summary.
func (i *Importer) extractAll(ctx context.Context, briefs []types.Brief) {
	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < WorkerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				b := &briefs[idx]
				if b.SourceURL == "" {
					continue
				}
				text, err := i.extract(ctx, b.SourceURL)
				if err != nil {
					log.Printf("[Worker %d] Failed to extract %s: %v", workerID, b.SourceURL, err)
					continue
				}
				if text = clip(strings.TrimSpace(text)); text != "" {
					b.Script = text
				}
			}
		}(w)
	}

	for idx := range briefs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
}

func readabilityText(ctx context.Context, url string) (string, error) {
	article, err := readability.FromURL(url, extractorTimeout)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}
	return article.TextContent, nil
}

// plainText strips markup from a feed summary.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// clip cuts s at the last sentence end that fits the script limit.
func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxScriptRunes {
		return s
	}
	cut := string(r[:maxScriptRunes])
	if end := strings.LastIndexAny(cut, ".!?"); end > 0 {
		return cut[:end+1]
	}
	return cut
}

// briefID creates a short stable id from a GUID or URL.
func briefID(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:16]
}

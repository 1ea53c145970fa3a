package briefs

// Feed is a named RSS/Atom source of briefs.
type Feed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Presets maps friendly keys to feeds.
var Presets = map[string]Feed{
	"hn": {
		Name: "Hacker News",
		URL:  "https://hnrss.org/newest",
	},
	"tr": {
		Name: "Technology Review",
		URL:  "https://www.technologyreview.com/feed/",
	},
	"ph": {
		Name: "Product Hunt",
		URL:  "https://www.producthunt.com/feed",
	},
}

// ResolveFeed returns the URL for a preset key, or s itself when it is not a
// preset.
func ResolveFeed(s string) string {
	if f, ok := Presets[s]; ok {
		return f.URL
	}
	return s
}

// Package news reads rover mission updates from an RSS or Atom feed.
package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultFeedURL is the agency news feed.
const DefaultFeedURL = "https://www.nasa.gov/feed/"

// KnownRovers are the names items are tagged with.
var KnownRovers = []string{"Curiosity", "Perseverance", "Opportunity", "Spirit"}

// Item is one news entry.
type Item struct {
	GUID      string    `json:"guid"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Published time.Time `json:"published"`
	Rovers    []string  `json:"rovers,omitempty"`
}

// Mentions reports whether the item is tagged with rover.
func (i *Item) Mentions(rover string) bool {
	for _, r := range i.Rovers {
		if strings.EqualFold(r, rover) {
			return true
		}
	}
	return false
}

// Fetcher handles fetching and parsing news feeds.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used by the parser.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.parser.Client = c
	}
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		parser:  gofeed.NewParser(),
		timeout: 10 * time.Second,
	}
	f.parser.UserAgent = "rover-cli"
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and parses a feed from a URL. It returns the feed title
// and its items, newest first as published.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch news from %s: %w", url, err)
	}

	return parsed.Title, convert(parsed), nil
}

// Parse parses feed content from a string.
func (f *Fetcher) Parse(content string) (string, []Item, error) {
	if content == "" {
		return "", nil, fmt.Errorf("feed content is empty")
	}

	parsed, err := f.parser.ParseString(content)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return parsed.Title, convert(parsed), nil
}

func convert(gf *gofeed.Feed) []Item {
	items := make([]Item, 0, len(gf.Items))
	for _, it := range gf.Items {
		items = append(items, convertItem(it))
	}
	return items
}

func convertItem(it *gofeed.Item) Item {
	item := Item{
		GUID:  it.GUID,
		Title: it.Title,
		Link:  it.Link,
	}

	// Use link as GUID if GUID is missing
	if item.GUID == "" {
		item.GUID = it.Link
	}

	// Prefer the short description over full content
	if it.Description != "" {
		item.Summary = it.Description
	} else {
		item.Summary = it.Content
	}

	switch {
	case it.PublishedParsed != nil:
		item.Published = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		item.Published = *it.UpdatedParsed
	}

	text := item.Title + " " + item.Summary
	for _, c := range it.Categories {
		text += " " + c
	}
	item.Rovers = Tag(text, KnownRovers)
	return item
}

// Tag returns the rovers named in text, in the order of rovers.
func Tag(text string, rovers []string) []string {
	text = strings.ToLower(text)
	var tags []string
	for _, r := range rovers {
		if strings.Contains(text, strings.ToLower(r)) {
			tags = append(tags, r)
		}
	}
	return tags
}

// Filter keeps the items mentioning rover, at most limit of them.
// An empty rover keeps everything; limit <= 0 means no limit.
func Filter(items []Item, rover string, limit int) []Item {
	out := []Item{}
	for _, it := range items {
		if rover != "" && !it.Mentions(rover) {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

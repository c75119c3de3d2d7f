package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/logger"
)

// DefaultRedditBaseURL is the public Reddit host serving per-subreddit feeds.
const DefaultRedditBaseURL = "https://www.reddit.com"

// RedditClient fetches a subreddit's feed. Reddit's .rss endpoint serves
// Atom, so entries parse with the same types as the arXiv feed.
type RedditClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewRedditClient creates a client for the public Reddit feed endpoint.
func NewRedditClient() *RedditClient {
	return NewRedditClientWithBaseURL(DefaultRedditBaseURL)
}

// NewRedditClientWithBaseURL creates a client against a specific host.
// Used by tests.
func NewRedditClientWithBaseURL(baseURL string) *RedditClient {
	return &RedditClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.Get(),
	}
}

// Fetch retrieves up to limit entries from r/<subreddit>. Entry ids are used
// verbatim as article ids; Reddit posts carry no authors in our model.
func (c *RedditClient) Fetch(ctx context.Context, subreddit string, limit int) ([]core.Article, error) {
	url := fmt.Sprintf("%s/r/%s.rss", c.baseURL, subreddit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalidQuery, Err: err}
	}
	req.Header.Set("User-Agent", "nicheexplorer/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Kind: KindNotFound, Err: fmt.Errorf("subreddit %q not found", subreddit)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Kind: KindTransient, Err: fmt.Errorf("reddit returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindTransient, Err: err}
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &FetchError{Kind: KindTransient, Err: fmt.Errorf("failed to parse reddit feed: %w", err)}
	}

	if len(feed.Entries) > limit {
		feed.Entries = feed.Entries[:limit]
	}

	articles := make([]core.Article, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		articles = append(articles, redditEntryToArticle(entry))
	}

	c.log.Debug("Fetched reddit articles", "subreddit", subreddit, "count", len(articles))
	return articles, nil
}

func redditEntryToArticle(entry atomEntry) core.Article {
	link := entry.ID
	for _, l := range entry.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			link = l.Href
			break
		}
	}

	summary := entry.Summary
	if summary == "" {
		summary = entry.Content
	}

	// published preferred, updated as fallback
	published := parseAtomTime(entry.Published)
	if published == nil {
		published = parseAtomTime(entry.Updated)
	}

	return core.Article{
		ID:        entry.ID,
		Title:     collapseWhitespace(entry.Title),
		Link:      link,
		Summary:   summary,
		Authors:   []string{},
		Published: published,
		Source:    core.SourceReddit,
	}
}

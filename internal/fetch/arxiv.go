package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// DefaultArxivBaseURL is the arXiv export API endpoint. A 301 from the
// plain-HTTP variant is followed transparently by the HTTP client.
const DefaultArxivBaseURL = "https://export.arxiv.org/api/query"

const (
	arxivRetryBase  = 500 * time.Millisecond
	arxivMaxRetries = 3
)

// atomFeed models the subset of the Atom response we consume. Shared with
// the Reddit client, whose .rss endpoint also serves Atom.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Content   string       `xml:"content"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ArxivClient calls the arXiv export API. Requests are rate limited to one
// per second per client and retried with exponential backoff on transient
// failures.
type ArxivClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewArxivClient creates a client for the public arXiv export API.
func NewArxivClient() *ArxivClient {
	return NewArxivClientWithBaseURL(DefaultArxivBaseURL)
}

// NewArxivClientWithBaseURL creates a client against a specific endpoint.
// Used by tests.
func NewArxivClientWithBaseURL(baseURL string) *ArxivClient {
	return &ArxivClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     logger.Get(),
	}
}

// Search executes a search expression and maps the Atom entries to Articles.
// Results are requested sorted by relevance, descending.
func (c *ArxivClient) Search(ctx context.Context, searchQuery string, maxResults int) ([]core.Article, error) {
	url := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		c.baseURL, escapeArxivQuery(searchQuery), maxResults)

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return &statusError{code: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&statusError{code: resp.StatusCode})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = arxivRetryBase
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, arxivMaxRetries), ctx)); err != nil {
		return nil, classifyArxivError(err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &FetchError{Kind: KindTransient, Err: fmt.Errorf("failed to parse arXiv feed: %w", err)}
	}

	articles := make([]core.Article, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		articles = append(articles, entryToArticle(entry))
	}

	c.log.Debug("Fetched arXiv articles", "query", searchQuery, "count", len(articles))
	return articles, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("arXiv API returned status %d", e.code)
}

func classifyArxivError(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
		if se.code == http.StatusNotFound {
			return &FetchError{Kind: KindNotFound, Err: err}
		}
		return &FetchError{Kind: KindInvalidQuery, Err: err}
	}
	return &FetchError{Kind: KindTransient, Err: err}
}

// entryToArticle maps one Atom entry to an Article. The article id is the
// final path segment of the entry id (the arXiv short id).
func entryToArticle(entry atomEntry) core.Article {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	return core.Article{
		ID:        shortID(entry.ID),
		Title:     collapseWhitespace(entry.Title),
		Link:      entry.ID,
		Summary:   strings.TrimSpace(entry.Summary),
		Authors:   authors,
		Published: parseAtomTime(entry.Published),
		Source:    core.SourceArxiv,
	}
}

// shortID extracts the final path segment of an arXiv entry id, e.g.
// http://arxiv.org/abs/2301.00001v1 -> 2301.00001v1.
func shortID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/"); idx >= 0 {
		return entryID[idx+1:]
	}
	return entryID
}

// parseAtomTime parses an ISO-8601 timestamp and forces it to UTC. Naive
// timestamps are assumed to already be UTC. Returns nil when unparseable.
func parseAtomTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// collapseWhitespace joins the multi-line titles arXiv emits into one line.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// escapeArxivQuery percent-encodes a search expression while preserving the
// arXiv query operators ':', '+' and '"' literally.
func escapeArxivQuery(query string) string {
	var b strings.Builder
	for _, c := range []byte(query) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		case c == ':' || c == '+' || c == '"':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

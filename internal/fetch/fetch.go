// Package fetch retrieves articles from arXiv and Reddit and normalizes them
// to the core Article shape.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nicheexplorer/internal/classify"
	"nicheexplorer/internal/core"
	"nicheexplorer/internal/logger"
)

// ErrorKind categorizes fetch failures for the layer above.
type ErrorKind string

const (
	KindTransient    ErrorKind = "transient"
	KindInvalidQuery ErrorKind = "invalid_query"
	KindNotFound     ErrorKind = "not_found"
)

// FetchError is returned when a source could not be fetched after retries.
// An empty result set is not an error.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	// DefaultLimit applies when the caller does not specify one.
	DefaultLimit = 50
	// MaxLimit is the upper bound on a single fetch.
	MaxLimit = 200
)

// Fetcher dispatches a source selection to the matching client.
type Fetcher struct {
	arxiv  *ArxivClient
	reddit *RedditClient
	log    *slog.Logger
}

// New creates a fetcher with default clients.
func New() *Fetcher {
	return &Fetcher{
		arxiv:  NewArxivClient(),
		reddit: NewRedditClient(),
		log:    logger.Get(),
	}
}

// NewWithClients creates a fetcher with explicit clients. Used by tests.
func NewWithClients(arxiv *ArxivClient, reddit *RedditClient) *Fetcher {
	return &Fetcher{
		arxiv:  arxiv,
		reddit: reddit,
		log:    logger.Get(),
	}
}

// Fetch retrieves up to limit articles for the selection. The original
// free-text query feeds the last arXiv fallback tier. Returns an empty slice,
// not an error, when all fallbacks come up empty.
func (f *Fetcher) Fetch(ctx context.Context, sel core.SourceSelection, query string, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	switch sel.Source {
	case core.SourceArxiv:
		return f.fetchArxiv(ctx, sel, query, limit)
	case core.SourceReddit:
		return f.reddit.Fetch(ctx, sel.Subreddit, limit)
	default:
		return nil, &FetchError{Kind: KindInvalidQuery, Err: fmt.Errorf("unsupported source %q", sel.Source)}
	}
}

// fetchArxiv applies the three-tier empty-result fallback: the original
// expression, then category-only, then the raw free-text query.
func (f *Fetcher) fetchArxiv(ctx context.Context, sel core.SourceSelection, query string, limit int) ([]core.Article, error) {
	expr := searchExpression(sel, query)

	articles, err := f.arxiv.Search(ctx, expr, limit)
	if err != nil {
		return nil, err
	}

	if len(articles) == 0 {
		if fallback, ok := categoryOnlyFallback(expr); ok {
			f.log.Info("Advanced query empty, retrying category-only", "query", fallback)
			articles, err = f.arxiv.Search(ctx, fallback, limit)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(articles) == 0 && query != "" && query != expr {
		f.log.Info("Category query empty, retrying free-text", "query", query)
		articles, err = f.arxiv.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
	}

	if len(articles) == 0 {
		f.log.Warn("ArXiv query returned 0 results after all fallbacks", "query", expr)
	}

	return articles, nil
}

// searchExpression turns a selection into an arXiv search expression.
func searchExpression(sel core.SourceSelection, query string) string {
	if sel.AdvancedQuery != "" {
		return sel.AdvancedQuery
	}
	if sel.Category != "" {
		return "cat:" + sel.Category
	}
	return classify.BuildSearchQuery(query)
}

// categoryOnlyFallback extracts the trailing category from an advanced
// expression containing both a phrase selector and a cat: filter.
func categoryOnlyFallback(expr string) (string, bool) {
	if !strings.Contains(expr, "cat:") {
		return "", false
	}
	if !strings.Contains(expr, "all:") && !strings.Contains(expr, "AND") {
		return "", false
	}

	idx := strings.LastIndex(expr, "cat:")
	cat := expr[idx+len("cat:"):]
	if cat == "" {
		return "", false
	}
	return "cat:" + cat, true
}

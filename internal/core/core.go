// Package core defines the shared domain entities that flow through the
// topic-discovery pipeline.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies where an article was fetched from.
type Source string

const (
	SourceArxiv  Source = "arxiv"
	SourceReddit Source = "reddit"
)

// SourceType is the user-facing classification of a source.
type SourceType string

const (
	SourceTypeResearch  SourceType = "research"
	SourceTypeCommunity SourceType = "community"
)

// Type returns the user-facing classification for a source.
func (s Source) Type() SourceType {
	if s == SourceReddit {
		return SourceTypeCommunity
	}
	return SourceTypeResearch
}

// SourceSelection is the result of classifying a free-text query: exactly one
// of the two cases is populated.
type SourceSelection struct {
	Source Source `json:"source"`

	// ArXiv case
	Category      string `json:"category,omitempty"`       // e.g. "cs.CV"
	AdvancedQuery string `json:"advanced_query,omitempty"` // e.g. `all:"graph neural network"+AND+cat:cs.CV`

	// Reddit case
	Subreddit string `json:"subreddit,omitempty"`

	Confidence float64 `json:"confidence"`
}

// Feed returns the source-specific feed identifier: the advanced query or
// category for arXiv, the subreddit name for Reddit.
func (s SourceSelection) Feed() string {
	if s.Source == SourceReddit {
		return s.Subreddit
	}
	if s.AdvancedQuery != "" {
		return s.AdvancedQuery
	}
	return s.Category
}

// Article is a normalized document fetched from an external source. The ID is
// stable across calls for the same underlying document (arXiv short id or
// Reddit entry id).
type Article struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Summary   string     `json:"summary"`
	Authors   []string   `json:"authors"`
	Published *time.Time `json:"published,omitempty"` // always UTC when set
	Source    Source     `json:"source"`
}

// DocumentText returns the text that is embedded and clustered for an article.
func (a Article) DocumentText() string {
	return strings.TrimSpace(a.Title + " " + a.Summary)
}

// KeywordWeight is a keyword term with its count-based weight within a cluster.
type KeywordWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Cluster is an engine-local grouping of articles. ID -1 is reserved for
// noise (unclustered documents).
type Cluster struct {
	ID                 int             `json:"id"`
	Articles           []Article       `json:"articles"`
	Keywords           []KeywordWeight `json:"keywords"`
	RepresentativeDocs []string        `json:"representative_docs"`
}

// NoiseClusterID marks documents a density clusterer could not assign.
const NoiseClusterID = -1

// Topic is a labeled, ranked cluster returned to callers.
type Topic struct {
	ID           string    `json:"id"` // fresh UUID per discovery call
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ArticleCount int       `json:"article_count"` // pre-truncation member count
	Relevance    int       `json:"relevance"`     // [1,100]; largest topic scores 100
	Articles     []Article `json:"articles"`
}

// DiscoveryResult is the final output of one DiscoverTopics call.
type DiscoveryResult struct {
	Query                  string  `json:"query"`
	Topics                 []Topic `json:"topics"`
	TotalArticlesProcessed int     `json:"total_articles_processed"`
}

// MaxQueryBytes bounds the accepted user query length.
const MaxQueryBytes = 1024

// ValidateQuery rejects empty or oversized queries after trimming.
func ValidateQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	if len(trimmed) > MaxQueryBytes {
		return "", fmt.Errorf("query exceeds %d bytes", MaxQueryBytes)
	}
	return trimmed, nil
}

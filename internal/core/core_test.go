package core

import (
	"strings"
	"testing"
	"time"
)

func TestSourceType(t *testing.T) {
	if got := SourceArxiv.Type(); got != SourceTypeResearch {
		t.Errorf("Expected arxiv to map to research, got %s", got)
	}
	if got := SourceReddit.Type(); got != SourceTypeCommunity {
		t.Errorf("Expected reddit to map to community, got %s", got)
	}
}

func TestSourceSelectionFeed(t *testing.T) {
	sel := SourceSelection{Source: SourceArxiv, Category: "cs.CV"}
	if sel.Feed() != "cs.CV" {
		t.Errorf("Expected feed 'cs.CV', got %s", sel.Feed())
	}

	sel.AdvancedQuery = `all:"graph neural network"+AND+cat:cs.CV`
	if sel.Feed() != sel.AdvancedQuery {
		t.Errorf("Advanced query should take precedence over category, got %s", sel.Feed())
	}

	reddit := SourceSelection{Source: SourceReddit, Subreddit: "MachineLearning"}
	if reddit.Feed() != "MachineLearning" {
		t.Errorf("Expected feed 'MachineLearning', got %s", reddit.Feed())
	}
}

func TestArticleDocumentText(t *testing.T) {
	article := Article{Title: "Title", Summary: "Summary text"}
	if got := article.DocumentText(); got != "Title Summary text" {
		t.Errorf("Unexpected document text: %q", got)
	}

	// Missing summary should not leave a trailing space
	article = Article{Title: "Only title"}
	if got := article.DocumentText(); got != "Only title" {
		t.Errorf("Unexpected document text: %q", got)
	}
}

func TestValidateQuery(t *testing.T) {
	if _, err := ValidateQuery("   "); err == nil {
		t.Error("Expected error for blank query")
	}

	trimmed, err := ValidateQuery("  graph neural networks  ")
	if err != nil {
		t.Fatalf("ValidateQuery failed: %v", err)
	}
	if trimmed != "graph neural networks" {
		t.Errorf("Expected trimmed query, got %q", trimmed)
	}

	oversized := strings.Repeat("a", MaxQueryBytes+1)
	if _, err := ValidateQuery(oversized); err == nil {
		t.Error("Expected error for oversized query")
	}
}

func TestArticlePublishedIsOptional(t *testing.T) {
	article := Article{ID: "2301.00001v1", Source: SourceArxiv}
	if article.Published != nil {
		t.Error("Published should default to nil")
	}

	now := time.Now().UTC()
	article.Published = &now
	if !article.Published.Equal(now) {
		t.Error("Published timestamp mismatch")
	}
}

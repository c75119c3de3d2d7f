package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nicheexplorer/internal/core"
)

const arxivFeedTwoEntries = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>Deep Learning
      for Vision</title>
    <summary>  A survey of vision models.  </summary>
    <published>2023-01-02T15:04:05Z</published>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00002v2</id>
    <title>Graph Networks</title>
    <summary>Message passing on graphs.</summary>
    <published>2023-01-03T08:00:00-05:00</published>
    <author><name>Grace Hopper</name></author>
  </entry>
</feed>`

const arxivFeedEmpty = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(arxivFeedTwoEntries))
	}))
	defer server.Close()

	client := NewArxivClientWithBaseURL(server.URL)
	articles, err := client.Search(context.Background(), `all:"deep learning"+AND+cat:cs.CV`, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.ID != "2301.00001v1" {
		t.Errorf("Expected short id, got %q", first.ID)
	}
	if first.Link != "http://arxiv.org/abs/2301.00001v1" {
		t.Errorf("Expected entry id as link, got %q", first.Link)
	}
	if first.Title != "Deep Learning for Vision" {
		t.Errorf("Expected collapsed title, got %q", first.Title)
	}
	if first.Summary != "A survey of vision models." {
		t.Errorf("Expected trimmed summary, got %q", first.Summary)
	}
	if len(first.Authors) != 2 || first.Authors[0] != "Ada Lovelace" {
		t.Errorf("Unexpected authors: %v", first.Authors)
	}
	if first.Published == nil || !first.Published.Equal(time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC)) {
		t.Errorf("Unexpected published time: %v", first.Published)
	}
	if first.Source != core.SourceArxiv {
		t.Errorf("Expected arxiv source, got %s", first.Source)
	}

	second := articles[1]
	if second.Published == nil || second.Published.Location() != time.UTC {
		t.Errorf("Expected published forced to UTC, got %v", second.Published)
	}

	if !strings.Contains(gotQuery, "max_results=10") {
		t.Errorf("Expected max_results in query, got %q", gotQuery)
	}
	if !strings.Contains(gotQuery, "sortBy=relevance") {
		t.Errorf("Expected relevance sort, got %q", gotQuery)
	}
}

func TestArxivSearchClientError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewArxivClientWithBaseURL(server.URL)
	_, err := client.Search(context.Background(), "cat:cs.CV", 10)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindInvalidQuery {
		t.Errorf("Expected invalid_query kind, got %v", err)
	}
	if requests != 1 {
		t.Errorf("Expected no retries on 4xx, got %d requests", requests)
	}
}

func TestArxivSearchRetriesServerError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(arxivFeedEmpty))
	}))
	defer server.Close()

	client := NewArxivClientWithBaseURL(server.URL)
	articles, err := client.Search(context.Background(), "cat:cs.CV", 10)
	if err != nil {
		t.Fatalf("Expected retries to recover, got %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("Expected empty result, got %d", len(articles))
	}
	if requests != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}
}

func TestEscapeArxivQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`all:"deep learning"+AND+cat:cs.CV`, `all:"deep%20learning"+AND+cat:cs.CV`},
		{"cat:cs.CV", "cat:cs.CV"},
		{"a b", "a%20b"},
		{"50%", "50%25"},
	}

	for _, tt := range tests {
		if got := escapeArxivQuery(tt.input); got != tt.want {
			t.Errorf("escapeArxivQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseAtomTime(t *testing.T) {
	if got := parseAtomTime("not a time"); got != nil {
		t.Errorf("Expected nil for unparseable timestamp, got %v", got)
	}
	if got := parseAtomTime(""); got != nil {
		t.Errorf("Expected nil for empty timestamp, got %v", got)
	}

	got := parseAtomTime("2023-05-01T12:00:00")
	if got == nil || !got.Equal(time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected naive timestamp treated as UTC, got %v", got)
	}
}

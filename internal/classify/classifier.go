// Package classify turns a free-text user query into a source selection with
// a structured, source-specific query.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/llm"
	"nicheexplorer/internal/logger"

	"golang.org/x/text/unicode/norm"
)

// classifyPrompt asks the LLM for a raw JSON source/feed decision.
const classifyPrompt = `You are an assistant that classifies user queries and selects the best content source.

Return ONLY valid JSON with keys 'source', 'feed', and optional 'confidence'. No markdown fences.

- source: 'arxiv' or 'reddit'
- feed  :
   * arxiv  -> either a simple category (cs.CV, cs.AI, cs.LG ...) or an advanced query string accepted by the arXiv export API (e.g. all:"graph neural network"+AND+cat:cs.CV).
   * reddit -> subreddit name (MachineLearning, computervision ...).

When you build an advanced arXiv query:
- Ignore generic stop-words such as: current, latest, recent, research, study, studies, trend, trends, paper, papers.
- Quote multi-word key phrases inside all:"...".
- Combine multiple key phrases with +AND+ and always keep a cat:<category> filter.

Examples (JSON output):
"computer vision trends"                    -> {"source":"arxiv","feed":"cs.CV"}
"graph neural networks in computer vision"  -> {"source":"arxiv","feed":"all:\"graph neural network\"+AND+cat:cs.CV"}
"GPU buying advice"                         -> {"source":"reddit","feed":"hardware"}

User query: %s`

// fillerTokens are generic words stripped from the query before it is sent to
// the LLM.
var fillerTokens = map[string]struct{}{
	"current": {}, "latest": {}, "recent": {}, "research": {},
	"study": {}, "studies": {}, "trend": {}, "trends": {},
	"paper": {}, "papers": {}, "growing": {}, "growth": {},
}

// categoryPattern matches simple arXiv categories like cs.CV or math.ST.
var categoryPattern = regexp.MustCompile(`^[a-z]+\.[A-Z]{2,}$`)

// Classifier translates free text into a SourceSelection via an LLM, with a
// deterministic fallback on every error path.
type Classifier struct {
	gen llm.TextGenerator
	log *slog.Logger
}

// New creates a classifier backed by the given text generator.
func New(gen llm.TextGenerator) *Classifier {
	return &Classifier{
		gen: gen,
		log: logger.Get(),
	}
}

// fallbackSelection is returned on every error path: arXiv computer vision
// with reduced confidence.
func fallbackSelection() core.SourceSelection {
	return core.SourceSelection{
		Source:     core.SourceArxiv,
		Category:   "cs.CV",
		Confidence: 0.5,
	}
}

// llmClassification mirrors the JSON shape the prompt demands. The legacy
// key suggested_category is accepted as an alias for feed.
type llmClassification struct {
	Source            string   `json:"source"`
	Feed              string   `json:"feed"`
	SuggestedCategory string   `json:"suggested_category"`
	Confidence        *float64 `json:"confidence"`
}

// Classify normalizes the query, asks the LLM for a source/feed decision and
// parses the result. It never fails: parse errors, invalid shapes and
// transport failures all resolve to the deterministic fallback.
func (c *Classifier) Classify(ctx context.Context, query string) core.SourceSelection {
	if strings.TrimSpace(query) == "" {
		return fallbackSelection()
	}

	normalized := NormalizeQuery(query)
	if normalized == "" {
		normalized = query
	}

	raw, err := c.gen.GenerateText(ctx, fmt.Sprintf(classifyPrompt, normalized), llm.TextGenerationOptions{})
	if err != nil {
		c.log.Error("Query classification failed, using fallback", "error", err, "query", normalized)
		return fallbackSelection()
	}

	selection, err := parseClassification(raw)
	if err != nil {
		c.log.Error("Failed to parse classification response, using fallback", "error", err, "response", raw)
		return fallbackSelection()
	}

	return selection
}

// parseClassification converts the raw LLM output into a SourceSelection.
func parseClassification(raw string) (core.SourceSelection, error) {
	cleaned := llm.StripFences(raw)

	var data llmClassification
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return core.SourceSelection{}, fmt.Errorf("invalid JSON: %w", err)
	}

	feed := data.Feed
	if feed == "" {
		feed = data.SuggestedCategory
	}
	if feed == "" {
		return core.SourceSelection{}, fmt.Errorf("missing feed")
	}
	feed = NormalizeFeed(feed)

	confidence := 0.8
	if data.Confidence != nil {
		confidence = *data.Confidence
	}

	switch data.Source {
	case "reddit", "community":
		return core.SourceSelection{
			Source:     core.SourceReddit,
			Subreddit:  feed,
			Confidence: confidence,
		}, nil
	case "arxiv", "research", "":
		sel := core.SourceSelection{
			Source:     core.SourceArxiv,
			Confidence: confidence,
		}
		if categoryPattern.MatchString(feed) {
			sel.Category = feed
		} else {
			sel.AdvancedQuery = feed
		}
		return sel, nil
	default:
		return core.SourceSelection{}, fmt.Errorf("unknown source %q", data.Source)
	}
}

// NormalizeQuery applies Unicode NFC normalization, collapses whitespace and
// strips generic filler tokens. Returns the empty string when every token is
// filler.
func NormalizeQuery(query string) string {
	normalized := norm.NFC.String(query)

	var kept []string
	for _, token := range strings.Fields(normalized) {
		if _, filler := fillerTokens[strings.ToLower(token)]; filler {
			continue
		}
		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

// NormalizeFeed canonicalizes common feed shorthands: "cv" and
// "computer vision" become cs.CV, subreddit names lose a leading r/.
func NormalizeFeed(feed string) string {
	trimmed := strings.TrimSpace(feed)
	switch strings.ToLower(trimmed) {
	case "cv", "computer vision":
		return "cs.CV"
	}
	return strings.TrimPrefix(trimmed, "r/")
}

// Package discovery wires the pipeline stages behind one entry point:
// classify the query, fetch articles, embed them, and model topics.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/logger"
	"nicheexplorer/internal/topics"
)

// Classifier turns a free-text query into a source selection.
type Classifier interface {
	Classify(ctx context.Context, query string) core.SourceSelection
}

// Fetcher retrieves articles for a source selection.
type Fetcher interface {
	Fetch(ctx context.Context, sel core.SourceSelection, query string, limit int) ([]core.Article, error)
}

// Embedder returns one embedding per input position, plus the cache hit count.
type Embedder interface {
	GetOrCompute(ctx context.Context, ids []string, texts []string) ([][]float32, int, error)
}

// TopicModeler clusters embedded articles into ranked topics.
type TopicModeler interface {
	Cluster(ctx context.Context, query string, articles []core.Article, embeddings [][]float32, params topics.Params) core.DiscoveryResult
}

// Request holds the inputs of one discovery call.
type Request struct {
	Query  string
	Limit  int // articles to fetch; 0 takes the fetcher default
	Params topics.Params
}

// Service runs the discovery pipeline. Stages execute sequentially; only the
// per-topic labeling inside the engine fans out.
type Service struct {
	classifier Classifier
	fetcher    Fetcher
	embedder   Embedder
	engine     TopicModeler
	log        *slog.Logger
}

// New creates a discovery service from its stage implementations.
func New(classifier Classifier, fetcher Fetcher, embedder Embedder, engine TopicModeler) *Service {
	return &Service{
		classifier: classifier,
		fetcher:    fetcher,
		embedder:   embedder,
		engine:     engine,
		log:        logger.Get(),
	}
}

// DiscoverTopics executes classify, fetch, embed, and cluster for one query.
// An invalid query or a fetch failure is returned to the caller; embedding
// and modeling degrade internally instead of failing.
func (s *Service) DiscoverTopics(ctx context.Context, req Request) (core.DiscoveryResult, error) {
	query, err := core.ValidateQuery(req.Query)
	if err != nil {
		return core.DiscoveryResult{}, err
	}

	sel := s.classifier.Classify(ctx, query)
	s.log.Info("Query classified",
		"source", sel.Source, "feed", sel.Feed(), "confidence", sel.Confidence)

	articles, err := s.fetcher.Fetch(ctx, sel, query, req.Limit)
	if err != nil {
		return core.DiscoveryResult{}, fmt.Errorf("failed to fetch articles: %w", err)
	}
	if len(articles) == 0 {
		s.log.Warn("No articles found", "query", query)
		return core.DiscoveryResult{Query: query, Topics: []core.Topic{}}, nil
	}

	ids := make([]string, len(articles))
	texts := make([]string, len(articles))
	for i, article := range articles {
		ids[i] = article.ID
		texts[i] = article.DocumentText()
	}

	embeddings, cachedCount, err := s.embedder.GetOrCompute(ctx, ids, texts)
	if err != nil {
		return core.DiscoveryResult{}, fmt.Errorf("failed to embed articles: %w", err)
	}
	s.log.Info("Articles embedded", "total", len(articles), "cached", cachedCount)

	return s.engine.Cluster(ctx, query, articles, embeddings, req.Params), nil
}

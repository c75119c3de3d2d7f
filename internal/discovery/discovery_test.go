package discovery

import (
	"context"
	"errors"
	"testing"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/topics"
)

type fakeClassifier struct {
	sel     core.SourceSelection
	queries []string
}

func (f *fakeClassifier) Classify(ctx context.Context, query string) core.SourceSelection {
	f.queries = append(f.queries, query)
	return f.sel
}

type fakeFetcher struct {
	articles []core.Article
	err      error
	sel      core.SourceSelection
	query    string
	limit    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, sel core.SourceSelection, query string, limit int) ([]core.Article, error) {
	f.sel, f.query, f.limit = sel, query, limit
	return f.articles, f.err
}

type fakeEmbedder struct {
	err   error
	ids   []string
	texts []string
}

func (f *fakeEmbedder) GetOrCompute(ctx context.Context, ids []string, texts []string) ([][]float32, int, error) {
	f.ids, f.texts = ids, texts
	if f.err != nil {
		return nil, 0, f.err
	}
	embeddings := make([][]float32, len(ids))
	for i := range embeddings {
		embeddings[i] = []float32{float32(i)}
	}
	return embeddings, 1, nil
}

type fakeEngine struct {
	result     core.DiscoveryResult
	articles   []core.Article
	embeddings [][]float32
	params     topics.Params
}

func (f *fakeEngine) Cluster(ctx context.Context, query string, articles []core.Article, embeddings [][]float32, params topics.Params) core.DiscoveryResult {
	f.articles, f.embeddings, f.params = articles, embeddings, params
	return f.result
}

func TestDiscoverTopicsPipeline(t *testing.T) {
	classifier := &fakeClassifier{sel: core.SourceSelection{Source: core.SourceArxiv, Category: "cs.CV", Confidence: 0.8}}
	fetcher := &fakeFetcher{articles: []core.Article{
		{ID: "a1", Title: "First", Summary: "s1"},
		{ID: "a2", Title: "Second", Summary: "s2"},
	}}
	embedder := &fakeEmbedder{}
	engine := &fakeEngine{result: core.DiscoveryResult{
		Query:                  "vision models",
		Topics:                 []core.Topic{{Title: "Vision"}},
		TotalArticlesProcessed: 2,
	}}

	service := New(classifier, fetcher, embedder, engine)
	result, err := service.DiscoverTopics(context.Background(), Request{
		Query:  "  vision models  ",
		Limit:  25,
		Params: topics.Params{MinClusterSize: 2},
	})
	if err != nil {
		t.Fatalf("DiscoverTopics failed: %v", err)
	}

	if len(classifier.queries) != 1 || classifier.queries[0] != "vision models" {
		t.Errorf("Expected trimmed query passed to classifier, got %v", classifier.queries)
	}
	if fetcher.sel.Category != "cs.CV" || fetcher.limit != 25 {
		t.Errorf("Unexpected fetch inputs: %+v limit=%d", fetcher.sel, fetcher.limit)
	}
	if len(embedder.ids) != 2 || embedder.ids[0] != "a1" {
		t.Errorf("Expected article ids passed to embedder, got %v", embedder.ids)
	}
	if embedder.texts[0] != "First s1" {
		t.Errorf("Expected document text passed to embedder, got %q", embedder.texts[0])
	}
	if len(engine.embeddings) != 2 {
		t.Errorf("Expected embeddings forwarded to engine, got %d", len(engine.embeddings))
	}
	if engine.params.MinClusterSize != 2 {
		t.Errorf("Expected params forwarded, got %+v", engine.params)
	}
	if len(result.Topics) != 1 || result.Topics[0].Title != "Vision" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestDiscoverTopicsRejectsEmptyQuery(t *testing.T) {
	service := New(&fakeClassifier{}, &fakeFetcher{}, &fakeEmbedder{}, &fakeEngine{})
	if _, err := service.DiscoverTopics(context.Background(), Request{Query: "   "}); err == nil {
		t.Error("Expected error for empty query")
	}
}

func TestDiscoverTopicsFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("arxiv down")}
	service := New(&fakeClassifier{}, fetcher, &fakeEmbedder{}, &fakeEngine{})

	if _, err := service.DiscoverTopics(context.Background(), Request{Query: "q"}); err == nil {
		t.Error("Expected fetch error to propagate")
	}
}

func TestDiscoverTopicsNoArticles(t *testing.T) {
	service := New(&fakeClassifier{}, &fakeFetcher{}, &fakeEmbedder{}, &fakeEngine{})

	result, err := service.DiscoverTopics(context.Background(), Request{Query: "obscure"})
	if err != nil {
		t.Fatalf("Expected empty result without error, got %v", err)
	}
	if len(result.Topics) != 0 || result.TotalArticlesProcessed != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

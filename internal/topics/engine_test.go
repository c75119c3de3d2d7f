package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"nicheexplorer/internal/core"
	"nicheexplorer/internal/llm"
)

// stubGenerator returns a canned response and records prompts.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string, opts llm.TextGenerationOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubGenerator) ModelName() string { return "stub-model" }

// twoBlobCorpus returns 8 articles and embeddings forming a 5-article blob
// and a 3-article blob.
func twoBlobCorpus() ([]core.Article, [][]float32) {
	articles := make([]core.Article, 8)
	embeddings := make([][]float32, 8)
	for i := 0; i < 5; i++ {
		articles[i] = core.Article{
			ID:      fmt.Sprintf("vision-%d", i),
			Title:   "Neural vision models for segmentation",
			Summary: "Convolutional networks segment images.",
			Source:  core.SourceArxiv,
		}
		embeddings[i] = []float32{1.0, 0.01 * float32(i), 0.0}
	}
	for i := 5; i < 8; i++ {
		articles[i] = core.Article{
			ID:      fmt.Sprintf("nlp-%d", i),
			Title:   "Language parsing with transformers",
			Summary: "Attention layers parse sentences.",
			Source:  core.SourceArxiv,
		}
		embeddings[i] = []float32{0.0, 0.01 * float32(i), 1.0}
	}
	return articles, embeddings
}

func TestClusterLabelsAndRanks(t *testing.T) {
	gen := &stubGenerator{response: `{"label": "Neural_Vision_Methods", "description": "Covers segmentation research. Focuses on convolutional models."}`}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	result := engine.Cluster(context.Background(), "vision research", articles, embeddings, Params{})

	if result.Query != "vision research" {
		t.Errorf("Unexpected query: %q", result.Query)
	}
	if result.TotalArticlesProcessed != 8 {
		t.Errorf("Expected 8 processed, got %d", result.TotalArticlesProcessed)
	}
	if len(result.Topics) != 2 {
		t.Fatalf("Expected 2 topics, got %d", len(result.Topics))
	}

	first, second := result.Topics[0], result.Topics[1]
	if first.ArticleCount != 5 || second.ArticleCount != 3 {
		t.Errorf("Expected counts 5 and 3, got %d and %d", first.ArticleCount, second.ArticleCount)
	}
	if first.Relevance != 100 {
		t.Errorf("Expected largest topic relevance 100, got %d", first.Relevance)
	}
	if second.Relevance != 60 {
		t.Errorf("Expected relevance 60 for 3/5, got %d", second.Relevance)
	}
	if first.Title != "Neural vision methods" {
		t.Errorf("Expected cleaned title, got %q", first.Title)
	}
	if first.Description != "Covers segmentation research. Focuses on convolutional models." {
		t.Errorf("Unexpected description: %q", first.Description)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Error("Expected fresh distinct topic ids")
	}
	if len(gen.prompts) != 2 {
		t.Errorf("Expected one LLM call per cluster, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "keywords:") {
		t.Errorf("Expected keywords in prompt, got %q", gen.prompts[0])
	}
}

func TestClusterFallbackWhenTooFewArticles(t *testing.T) {
	engine := New(&stubGenerator{})

	articles := []core.Article{{ID: "a", Title: "Lone article"}}
	embeddings := [][]float32{{1, 0}}
	result := engine.Cluster(context.Background(), "niche query", articles, embeddings, Params{})

	if len(result.Topics) != 1 {
		t.Fatalf("Expected single fallback topic, got %d", len(result.Topics))
	}
	topic := result.Topics[0]
	if topic.Title != "General Topic: niche query" {
		t.Errorf("Unexpected fallback title: %q", topic.Title)
	}
	if topic.Description != "Could not perform detailed topic modeling." {
		t.Errorf("Unexpected fallback description: %q", topic.Description)
	}
	if topic.Relevance != 50 {
		t.Errorf("Expected fallback relevance 50, got %d", topic.Relevance)
	}
	if topic.ArticleCount != 1 || len(topic.Articles) != 1 {
		t.Errorf("Expected fallback to carry the articles, got count %d", topic.ArticleCount)
	}
}

func TestClusterDropsArticlesWithoutEmbeddings(t *testing.T) {
	gen := &stubGenerator{response: `{"label": "Vision", "description": "d"}`}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	embeddings[7] = nil

	result := engine.Cluster(context.Background(), "q", articles, embeddings, Params{MinClusterSize: 2})

	if result.TotalArticlesProcessed != 7 {
		t.Errorf("Expected 7 processed after dropping, got %d", result.TotalArticlesProcessed)
	}
	for _, topic := range result.Topics {
		for _, a := range topic.Articles {
			if a.ID == "nlp-7" {
				t.Error("Expected article without embedding to be excluded")
			}
		}
	}
}

func TestClusterDegradesOnMalformedLLMResponse(t *testing.T) {
	raw := "A very long unstructured answer about robotics that easily exceeds the fifty character label limit"
	gen := &stubGenerator{response: raw}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	result := engine.Cluster(context.Background(), "q", articles, embeddings, Params{})

	topic := result.Topics[0]
	if len(topic.Title) > rawLabelMaxChars {
		t.Errorf("Expected title truncated to %d chars, got %d", rawLabelMaxChars, len(topic.Title))
	}
	if topic.Description != raw {
		t.Errorf("Expected raw response as description, got %q", topic.Description)
	}
}

func TestClusterPlaceholderOnLLMError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("transport down")}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	result := engine.Cluster(context.Background(), "q", articles, embeddings, Params{})

	if len(result.Topics) != 2 {
		t.Fatalf("Expected 2 topics despite labeling failure, got %d", len(result.Topics))
	}
	for _, topic := range result.Topics {
		if !strings.HasPrefix(topic.Title, "Topic ") {
			t.Errorf("Expected placeholder title, got %q", topic.Title)
		}
		if topic.Description != "No description available." {
			t.Errorf("Expected placeholder description, got %q", topic.Description)
		}
	}
}

func TestClusterHonorsNrTopics(t *testing.T) {
	gen := &stubGenerator{response: `{"label": "Vision", "description": "d"}`}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	result := engine.Cluster(context.Background(), "q", articles, embeddings, Params{NrTopics: 1})

	if len(result.Topics) != 1 {
		t.Fatalf("Expected 1 topic, got %d", len(result.Topics))
	}
	if result.Topics[0].ArticleCount != 5 {
		t.Errorf("Expected the largest cluster kept, got count %d", result.Topics[0].ArticleCount)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("Expected no labeling call for the discarded cluster, got %d", len(gen.prompts))
	}
}

func TestClusterTruncatesArticlesPerTopic(t *testing.T) {
	gen := &stubGenerator{response: `{"label": "Vision", "description": "d"}`}
	engine := New(gen)

	articles, embeddings := twoBlobCorpus()
	result := engine.Cluster(context.Background(), "q", articles, embeddings, Params{MaxArticlesPerTopic: 2})

	for _, topic := range result.Topics {
		if len(topic.Articles) > 2 {
			t.Errorf("Expected at most 2 articles per topic, got %d", len(topic.Articles))
		}
	}
	if result.Topics[0].ArticleCount != 5 {
		t.Errorf("Expected pre-truncation count preserved, got %d", result.Topics[0].ArticleCount)
	}
}

func TestSubdivideLargeClusters(t *testing.T) {
	engine := New(&stubGenerator{})

	// One parent of 12 members split across two directions.
	parent := memberCluster{id: 0}
	for i := 0; i < 6; i++ {
		parent.articles = append(parent.articles, core.Article{ID: fmt.Sprintf("a-%d", i)})
		parent.vectors = append(parent.vectors, []float32{1, 0.01 * float32(i), 0})
	}
	for i := 6; i < 12; i++ {
		parent.articles = append(parent.articles, core.Article{ID: fmt.Sprintf("b-%d", i)})
		parent.vectors = append(parent.vectors, []float32{0, 0.01 * float32(i), 1})
	}

	children := engine.subdivideLargeClusters([]memberCluster{parent})
	if len(children) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(children))
	}
	if len(children[0].articles)+len(children[1].articles) != 12 {
		t.Errorf("Expected children to cover all members")
	}
	if children[0].id == children[1].id {
		t.Error("Expected distinct child ids")
	}
}

func TestSubdivideKeepsSmallClusters(t *testing.T) {
	engine := New(&stubGenerator{})

	small := memberCluster{id: 3}
	for i := 0; i < 5; i++ {
		small.articles = append(small.articles, core.Article{ID: fmt.Sprintf("s-%d", i)})
		small.vectors = append(small.vectors, []float32{1, 0})
	}

	result := engine.subdivideLargeClusters([]memberCluster{small})
	if len(result) != 1 || result[0].id != 3 {
		t.Errorf("Expected cluster kept intact, got %+v", result)
	}
}

func TestCleanTopicTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"3_neural_networks", "Neural networks"},
		{`Label: "Vision Methods"`, "Vision methods"},
		{"topic: Robotics", "Robotics"},
		{`"Quoted Title"`, "Quoted title"},
		{"name:Graphs", "Graphs"},
		{"plain", "Plain"},
	}

	for _, tt := range tests {
		if got := cleanTopicTitle(tt.input); got != tt.want {
			t.Errorf("cleanTopicTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRankTopicsClampsRelevance(t *testing.T) {
	topics := []core.Topic{
		{ID: "big", ArticleCount: 300},
		{ID: "tiny", ArticleCount: 1},
	}
	clusters := []memberCluster{{id: 0}, {id: 1}}

	rankTopics(topics, clusters)

	if topics[0].Relevance != 100 {
		t.Errorf("Expected 100 for largest, got %d", topics[0].Relevance)
	}
	if topics[1].Relevance != 1 {
		t.Errorf("Expected clamp to 1, got %d", topics[1].Relevance)
	}
}

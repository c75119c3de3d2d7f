// Package topics turns embedded articles into labeled, ranked topics.
package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nicheexplorer/internal/clustering"
	"nicheexplorer/internal/core"
	"nicheexplorer/internal/llm"
	"nicheexplorer/internal/logger"
)

const (
	// DefaultMinClusterSize is the smallest member count a cluster needs to
	// become a topic.
	DefaultMinClusterSize = 3
	// DefaultMaxArticlesPerTopic caps the articles carried by each topic.
	DefaultMaxArticlesPerTopic = 40
	// DefaultMaxTopics caps the result when the caller sets no explicit count.
	DefaultMaxTopics = 10

	// subClusterThreshold is the member count above which a cluster is
	// re-clustered into finer-grained children.
	subClusterThreshold = 10
	topicKeywordCount   = 10
	representativeDocs  = 3
	fallbackArticleCap  = 50
	fallbackRelevance   = 50
	rawLabelMaxChars    = 50
)

// Params tunes one clustering run. Zero values take defaults.
type Params struct {
	MinClusterSize      int
	NrTopics            int // 0 means no explicit cap; DefaultMaxTopics applies
	MaxArticlesPerTopic int
}

func (p Params) withDefaults() Params {
	if p.MinClusterSize < 2 {
		p.MinClusterSize = DefaultMinClusterSize
	}
	if p.MaxArticlesPerTopic <= 0 {
		p.MaxArticlesPerTopic = DefaultMaxArticlesPerTopic
	}
	return p
}

// Engine clusters embedded articles and labels each cluster with one LLM
// call. It never fails: every error path degrades to a single general topic.
type Engine struct {
	gen llm.TextGenerator
	log *slog.Logger
}

// New creates a topic engine using the given text generator for labels.
func New(gen llm.TextGenerator) *Engine {
	return &Engine{
		gen: gen,
		log: logger.Get(),
	}
}

// memberCluster is the engine-local grouping before labeling.
type memberCluster struct {
	id       int
	articles []core.Article
	vectors  [][]float32
}

// Cluster groups articles by embedding, labels each group, and ranks the
// resulting topics. Articles without an embedding are dropped up front.
func (e *Engine) Cluster(ctx context.Context, query string, articles []core.Article, embeddings [][]float32, params Params) core.DiscoveryResult {
	params = params.withDefaults()

	var docs []core.Article
	var vectors [][]float32
	for i, article := range articles {
		if i < len(embeddings) && embeddings[i] != nil {
			docs = append(docs, article)
			vectors = append(vectors, embeddings[i])
		}
	}

	if len(docs) < params.MinClusterSize {
		e.log.Warn("Too few embedded articles for topic modeling",
			"usable", len(docs), "min", params.MinClusterSize)
		return e.fallback(query, articles)
	}

	clusterer := clustering.ForSize(len(docs), params.MinClusterSize)
	assignments, err := clusterer.Assign(vectors)
	if err != nil {
		e.log.Error("Clustering failed", "error", err)
		return e.fallback(query, articles)
	}

	e.log.Debug("Clustering quality",
		"articles", len(docs),
		"silhouette", clustering.AverageSilhouette(vectors, assignments))

	clusters := groupClusters(docs, vectors, assignments, params.MinClusterSize)
	if len(clusters) == 0 {
		e.log.Warn("No cluster met the minimum size", "min", params.MinClusterSize)
		return e.fallback(query, articles)
	}

	clusters = e.subdivideLargeClusters(clusters)

	// Largest clusters first so an explicit topic count keeps the biggest.
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].articles) != len(clusters[j].articles) {
			return len(clusters[i].articles) > len(clusters[j].articles)
		}
		return clusters[i].id < clusters[j].id
	})
	keep := DefaultMaxTopics
	if params.NrTopics > 0 {
		keep = params.NrTopics
	}
	if len(clusters) > keep {
		clusters = clusters[:keep]
	}

	topics := e.labelClusters(ctx, clusters)
	rankTopics(topics, clusters)

	for i := range topics {
		if len(topics[i].Articles) > params.MaxArticlesPerTopic {
			topics[i].Articles = topics[i].Articles[:params.MaxArticlesPerTopic]
		}
	}

	return core.DiscoveryResult{
		Query:                  query,
		Topics:                 topics,
		TotalArticlesProcessed: len(docs),
	}
}

// groupClusters collects non-noise assignments into clusters, dropping any
// below the minimum size. Clusters are ordered by ascending internal id.
func groupClusters(docs []core.Article, vectors [][]float32, assignments []int, minClusterSize int) []memberCluster {
	byLabel := make(map[int]*memberCluster)
	var labels []int
	for i, label := range assignments {
		if label == core.NoiseClusterID {
			continue
		}
		cluster, ok := byLabel[label]
		if !ok {
			cluster = &memberCluster{id: label}
			byLabel[label] = cluster
			labels = append(labels, label)
		}
		cluster.articles = append(cluster.articles, docs[i])
		cluster.vectors = append(cluster.vectors, vectors[i])
	}

	sort.Ints(labels)
	clusters := make([]memberCluster, 0, len(labels))
	for _, label := range labels {
		if len(byLabel[label].articles) >= minClusterSize {
			clusters = append(clusters, *byLabel[label])
		}
	}
	return clusters
}

// subdivideLargeClusters re-clusters any cluster above the threshold into
// finer children. A parent is kept when subdivision fails or produces at most
// one child.
func (e *Engine) subdivideLargeClusters(clusters []memberCluster) []memberCluster {
	var result []memberCluster
	nextID := 0
	for _, c := range clusters {
		if c.id >= nextID {
			nextID = c.id + 1
		}
	}

	for _, cluster := range clusters {
		if len(cluster.articles) <= subClusterThreshold {
			result = append(result, cluster)
			continue
		}

		subClusterer := clustering.ForSize(len(cluster.vectors), 2)
		subAssignments, err := subClusterer.Assign(cluster.vectors)
		if err != nil {
			e.log.Warn("Sub-clustering failed, keeping parent", "cluster", cluster.id, "error", err)
			result = append(result, cluster)
			continue
		}

		children := groupClusters(cluster.articles, cluster.vectors, subAssignments, 2)
		if len(children) <= 1 {
			result = append(result, cluster)
			continue
		}

		e.log.Debug("Split large cluster",
			"cluster", cluster.id, "members", len(cluster.articles), "children", len(children))
		for _, child := range children {
			child.id = nextID
			nextID++
			result = append(result, child)
		}
	}

	return result
}

// topicRepresentation is the JSON shape requested from the model.
type topicRepresentation struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// labelClusters fans out one labeling request per cluster and joins before
// returning. Topic order matches cluster order.
func (e *Engine) labelClusters(ctx context.Context, clusters []memberCluster) []core.Topic {
	topics := make([]core.Topic, len(clusters))

	g, ctx := errgroup.WithContext(ctx)
	for i, cluster := range clusters {
		g.Go(func() error {
			topics[i] = e.labelCluster(ctx, cluster)
			return nil
		})
	}
	_ = g.Wait()

	return topics
}

func (e *Engine) labelCluster(ctx context.Context, cluster memberCluster) core.Topic {
	texts := make([]string, len(cluster.articles))
	for i, article := range cluster.articles {
		texts[i] = article.DocumentText()
	}

	keywords := clustering.Keywords(texts, topicKeywordCount)
	repDocs := make([]string, 0, representativeDocs)
	for _, idx := range clustering.RepresentativeIndices(clustering.ToFloat64(cluster.vectors), representativeDocs) {
		repDocs = append(repDocs, texts[idx])
	}

	title, description := e.generateRepresentation(ctx, cluster.id, keywords, repDocs)

	return core.Topic{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		ArticleCount: len(cluster.articles),
		Articles:     cluster.articles,
	}
}

// generateRepresentation asks the model for a label and description in one
// request. A transport failure yields a generic placeholder; a response that
// is not valid JSON is used raw.
func (e *Engine) generateRepresentation(ctx context.Context, clusterID int, keywords []core.KeywordWeight, repDocs []string) (string, string) {
	if len(keywords) == 0 || len(repDocs) == 0 {
		return fmt.Sprintf("Topic %d", clusterID), "No description available."
	}

	raw, err := e.gen.GenerateText(ctx, buildTopicPrompt(keywords, repDocs), llm.TextGenerationOptions{})
	if err != nil {
		e.log.Error("Topic labeling failed", "cluster", clusterID, "error", err)
		return fmt.Sprintf("Topic %d", clusterID), "No description available."
	}

	cleaned := llm.StripFences(raw)
	var rep topicRepresentation
	if err := json.Unmarshal([]byte(cleaned), &rep); err != nil || rep.Label == "" {
		label := cleaned
		if len(label) > rawLabelMaxChars {
			label = label[:rawLabelMaxChars]
		}
		return cleanTopicTitle(label), cleaned
	}

	return cleanTopicTitle(rep.Label), rep.Description
}

// rankTopics computes relevance relative to the largest topic and sorts by
// (relevance desc, article count desc, internal cluster id asc).
func rankTopics(topics []core.Topic, clusters []memberCluster) {
	maxCount := 0
	for _, t := range topics {
		if t.ArticleCount > maxCount {
			maxCount = t.ArticleCount
		}
	}
	if maxCount == 0 {
		return
	}

	clusterIDs := make(map[string]int, len(topics))
	for i := range topics {
		relevance := int(math.Round(100.0 * float64(topics[i].ArticleCount) / float64(maxCount)))
		if relevance < 1 {
			relevance = 1
		}
		if relevance > 100 {
			relevance = 100
		}
		topics[i].Relevance = relevance
		clusterIDs[topics[i].ID] = clusters[i].id
	}

	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Relevance != topics[j].Relevance {
			return topics[i].Relevance > topics[j].Relevance
		}
		if topics[i].ArticleCount != topics[j].ArticleCount {
			return topics[i].ArticleCount > topics[j].ArticleCount
		}
		return clusterIDs[topics[i].ID] < clusterIDs[topics[j].ID]
	})
}

// fallback produces the single general topic used whenever detailed modeling
// is impossible.
func (e *Engine) fallback(query string, articles []core.Article) core.DiscoveryResult {
	capped := articles
	if len(capped) > fallbackArticleCap {
		capped = capped[:fallbackArticleCap]
	}

	return core.DiscoveryResult{
		Query: query,
		Topics: []core.Topic{{
			ID:           uuid.New().String(),
			Title:        "General Topic: " + query,
			Description:  "Could not perform detailed topic modeling.",
			ArticleCount: len(articles),
			Relevance:    fallbackRelevance,
			Articles:     capped,
		}},
		TotalArticlesProcessed: len(articles),
	}
}

package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nicheexplorer/internal/classify"
	"nicheexplorer/internal/config"
	"nicheexplorer/internal/discovery"
	"nicheexplorer/internal/embedding"
	"nicheexplorer/internal/fetch"
	"nicheexplorer/internal/topics"
	"nicheexplorer/internal/vectorstore"
)

// NewDiscoverCmd creates the discover command for running the pipeline once
// from the command line.
func NewDiscoverCmd() *cobra.Command {
	var (
		limit          int
		minClusterSize int
		nrTopics       int
	)

	cmd := &cobra.Command{
		Use:   "discover [query]",
		Short: "Discover topics for a query",
		Long: `Run the full discovery pipeline for a single query: classify the query,
fetch articles, embed them, cluster, and print the ranked topics.

Examples:
  nicheexplorer discover "computer vision research"
  nicheexplorer discover --limit 100 --nr-topics 5 "rust programming"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context(), args[0], limit, minClusterSize, nrTopics)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum articles to fetch (default from config)")
	cmd.Flags().IntVar(&minClusterSize, "min-cluster-size", 0, "Minimum articles per topic (default 3)")
	cmd.Flags().IntVar(&nrTopics, "nr-topics", 0, "Maximum topics to return (default 10)")

	return cmd
}

func runDiscover(ctx context.Context, query string, limit, minClusterSize, nrTopics int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if limit <= 0 {
		limit = cfg.Fetch.DefaultLimit
	}

	generator, embedProvider, err := buildLLMClients(ctx, cfg)
	if err != nil {
		return err
	}

	pool, err := vectorstore.NewPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to vector store: %w", err)
	}
	defer pool.Close()

	store := vectorstore.NewPgVectorStore(pool, vectorstore.DefaultDimensions)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector store schema: %w", err)
	}

	service := discovery.New(
		classify.New(generator),
		fetch.New(),
		embedding.New(store, embedProvider),
		topics.New(generator),
	)

	result, err := service.DiscoverTopics(ctx, discovery.Request{
		Query: query,
		Limit: limit,
		Params: topics.Params{
			MinClusterSize: minClusterSize,
			NrTopics:       nrTopics,
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Query: %s\n", result.Query)
	fmt.Printf("Articles processed: %d\n\n", result.TotalArticlesProcessed)

	if len(result.Topics) == 0 {
		fmt.Println("No topics found.")
		return nil
	}

	for i, topic := range result.Topics {
		fmt.Printf("%d. %s (relevance %d, %d articles)\n", i+1, topic.Title, topic.Relevance, topic.ArticleCount)
		fmt.Printf("   %s\n", topic.Description)
		for _, article := range topic.Articles {
			fmt.Printf("   - %s\n     %s\n", article.Title, article.Link)
		}
		fmt.Println()
	}

	return nil
}

package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nicheexplorer/internal/classify"
	"nicheexplorer/internal/config"
	"nicheexplorer/internal/embedding"
	"nicheexplorer/internal/fetch"
	"nicheexplorer/internal/llm"
	"nicheexplorer/internal/logger"
	"nicheexplorer/internal/server"
	"nicheexplorer/internal/topics"
	"nicheexplorer/internal/vectorstore"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server.
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the topic-discovery HTTP server",
		Long: `Start the NicheExplorer API server.

The server exposes classification, query building, article fetching,
embeddings, text generation and topic discovery under /api/v1, plus
/health and /metrics.

Examples:
  # Start server on the configured port (default 8080)
  nicheexplorer serve

  # Start on a custom port
  nicheexplorer serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	generator, embedProvider, err := buildLLMClients(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("LLM backend ready", "model", generator.ModelName())

	log.Info("Connecting to vector store", "host", cfg.Postgres.Host, "db", cfg.Postgres.DB)
	pool, err := vectorstore.NewPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to vector store: %w", err)
	}
	defer pool.Close()

	store := vectorstore.NewPgVectorStore(pool, vectorstore.DefaultDimensions)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector store schema: %w", err)
	}
	log.Info("Vector store ready")

	srv := server.New(server.Dependencies{
		Classifier: classify.New(generator),
		Generator:  generator,
		Fetcher:    fetch.New(),
		Embedder:   embedding.New(store, embedProvider),
		Topics:     topics.New(generator),
	}, serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("Server stopped")
	}

	return nil
}

// buildLLMClients selects the LLM backend from configured credentials. The
// Gemini backend serves both generation and embeddings; with only a Chair key
// the Chair backend generates text but embeddings still require Gemini.
func buildLLMClients(ctx context.Context, cfg *config.Config) (llm.TextGenerator, llm.EmbeddingProvider, error) {
	if cfg.AI.GoogleAPIKey != "" {
		client, err := llm.NewGoogleClient(ctx, cfg.AI.GoogleAPIKey, cfg.AI.Model, cfg.AI.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}

		if cfg.AI.ChairAPIKey != "" {
			generator, err := llm.NewChairClient(cfg.AI.ChairAPIKey, "", "")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create Chair client: %w", err)
			}
			return generator, client, nil
		}
		return client, client, nil
	}

	return nil, nil, fmt.Errorf("embeddings require GOOGLE_API_KEY: the Chair backend does not serve embeddings")
}

// Package server exposes the discovery pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nicheexplorer/internal/config"
	"nicheexplorer/internal/core"
	"nicheexplorer/internal/llm"
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

// Embedder serves embeddings from the cache, computing on miss.
type Embedder interface {
	GetOrCompute(ctx context.Context, ids []string, texts []string) ([][]float32, int, error)
	GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error)
}

// TopicModeler clusters embedded articles into ranked topics.
type TopicModeler interface {
	Cluster(ctx context.Context, query string, articles []core.Article, embeddings [][]float32, params topics.Params) core.DiscoveryResult
}

// Dependencies bundles the collaborators the handlers need.
type Dependencies struct {
	Classifier Classifier
	Generator  llm.TextGenerator
	Fetcher    Fetcher
	Embedder   Embedder
	Topics     TopicModeler
}

// Server is the HTTP server for the discovery API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Dependencies
	config     config.Server
	log        *slog.Logger
}

// New creates an HTTP server with middleware and routes configured.
func New(deps Dependencies, cfg config.Server) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		config: cfg,
		log:    logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  parseTimeout(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: parseTimeout(cfg.WriteTimeout, 120*time.Second),
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
	s.router.Use(metricsMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/query/build/{source}", s.handleBuildQuery)
		r.Post("/embeddings", s.handleCreateEmbeddings)
		r.Get("/embeddings", s.handleGetEmbeddings)
		r.Post("/generate/text", s.handleGenerateText)
		r.Post("/articles", s.handleFetchArticles)
		r.Get("/sources/{source}/categories", s.handleCategories)
		r.Post("/topics/discover", s.handleDiscoverTopics)
	})
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func parseTimeout(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}

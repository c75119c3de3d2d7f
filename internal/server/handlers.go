package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"nicheexplorer/internal/classify"
	"nicheexplorer/internal/core"
	"nicheexplorer/internal/llm"
	"nicheexplorer/internal/topics"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type classifyRequest struct {
	Query string `json:"query"`
}

type classifyResponse struct {
	Source            core.Source     `json:"source"`
	SourceType        core.SourceType `json:"source_type"`
	SuggestedCategory string          `json:"suggested_category"`
	Confidence        float64         `json:"confidence"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	query, err := core.ValidateQuery(req.Query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sel := s.deps.Classifier.Classify(r.Context(), query)
	s.respondJSON(w, http.StatusOK, classifyResponse{
		Source:            sel.Source,
		SourceType:        sel.Source.Type(),
		SuggestedCategory: sel.Feed(),
		Confidence:        sel.Confidence,
	})
}

type buildQueryRequest struct {
	SearchTerms string `json:"search_terms"`
	Filters     struct {
		Category  string `json:"category,omitempty"`
		Subreddit string `json:"subreddit,omitempty"`
	} `json:"filters"`
}

type buildQueryResponse struct {
	Query       string `json:"query"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

func (s *Server) handleBuildQuery(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	var req buildQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch source {
	case "arxiv":
		category := req.Filters.Category
		if category == "" {
			category = "cs.AI"
		}
		query := classify.BuildAdvancedQuery(req.SearchTerms, category)
		s.respondJSON(w, http.StatusOK, buildQueryResponse{
			Query:       query,
			Description: fmt.Sprintf("Search for '%s' in %s category", req.SearchTerms, category),
			Source:      source,
		})
	case "reddit":
		subreddit := strings.TrimPrefix(req.Filters.Subreddit, "r/")
		if subreddit == "" {
			s.respondError(w, http.StatusBadRequest, "subreddit filter is required for reddit")
			return
		}
		s.respondJSON(w, http.StatusOK, buildQueryResponse{
			Query:       subreddit,
			Description: fmt.Sprintf("Reddit feed for r/%s", subreddit),
			Source:      source,
		})
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported source: %s", source))
	}
}

type embeddingRequest struct {
	Texts []string `json:"texts"`
	IDs   []string `json:"ids"`
}

type embeddingResponse struct {
	Embeddings  [][]float32 `json:"embeddings"`
	CachedCount *int        `json:"cached_count,omitempty"`
	FoundCount  *int        `json:"found_count,omitempty"`
}

func (s *Server) handleCreateEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Texts) != len(req.IDs) {
		s.respondError(w, http.StatusBadRequest, "the number of texts and ids must be the same")
		return
	}

	embeddings, cachedCount, err := s.deps.Embedder.GetOrCompute(r.Context(), req.IDs, req.Texts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to generate embeddings: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, embeddingResponse{
		Embeddings:  embeddings,
		CachedCount: &cachedCount,
	})
}

func (s *Server) handleGetEmbeddings(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	stored, err := s.deps.Embedder.GetByIDs(r.Context(), ids)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve embeddings: %v", err))
		return
	}

	embeddings := make([][]float32, len(ids))
	found := 0
	for i, id := range ids {
		if vec, ok := stored[id]; ok {
			embeddings[i] = vec
			found++
		}
	}

	s.respondJSON(w, http.StatusOK, embeddingResponse{
		Embeddings: embeddings,
		FoundCount: &found,
	})
}

type generateTextRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int32   `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

type generateTextResponse struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.respondError(w, http.StatusBadRequest, "prompt cannot be empty")
		return
	}

	opts := llm.TextGenerationOptions{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	text, err := s.deps.Generator.GenerateText(r.Context(), req.Prompt, opts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to generate text: %v", err))
		return
	}

	model := req.Model
	if model == "" {
		model = s.deps.Generator.ModelName()
	}
	s.respondJSON(w, http.StatusOK, generateTextResponse{
		Text:   text,
		Model:  model,
		Prompt: req.Prompt,
	})
}

type fetchArticlesRequest struct {
	Source   string `json:"source"`
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type fetchArticlesResponse struct {
	Articles   []core.Article `json:"articles"`
	TotalFound int            `json:"total_found"`
	Source     string         `json:"source"`
}

func (s *Server) handleFetchArticles(w http.ResponseWriter, r *http.Request) {
	var req fetchArticlesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var sel core.SourceSelection
	switch req.Source {
	case "arxiv":
		sel = core.SourceSelection{Source: core.SourceArxiv}
		// A category that already carries operators is a ready expression.
		if strings.Contains(req.Category, "cat:") || strings.Contains(req.Category, "all:") {
			sel.AdvancedQuery = req.Category
		} else {
			sel.Category = req.Category
		}
	case "reddit":
		subreddit := req.Category
		if subreddit == "" {
			subreddit = req.Query
		}
		sel = core.SourceSelection{Source: core.SourceReddit, Subreddit: strings.TrimPrefix(subreddit, "r/")}
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported source: %s", req.Source))
		return
	}

	articles, err := s.deps.Fetcher.Fetch(r.Context(), sel, req.Query, req.Limit)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch articles: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, fetchArticlesResponse{
		Articles:   articles,
		TotalFound: len(articles),
		Source:     req.Source,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	groups, ok := classify.Categories(source)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown source: %s", source))
		return
	}
	s.respondJSON(w, http.StatusOK, groups)
}

type discoverTopicsRequest struct {
	Query          string         `json:"query"`
	ArticleIDs     []string       `json:"article_ids,omitempty"`
	Articles       []core.Article `json:"articles"`
	MinClusterSize int            `json:"min_cluster_size,omitempty"`
	NrTopics       int            `json:"nr_topics,omitempty"`
}

func (s *Server) handleDiscoverTopics(w http.ResponseWriter, r *http.Request) {
	var req discoverTopicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Articles) == 0 {
		s.respondError(w, http.StatusBadRequest, "articles must not be empty")
		return
	}
	if len(req.ArticleIDs) > 0 && len(req.ArticleIDs) != len(req.Articles) {
		s.respondError(w, http.StatusBadRequest, "article_ids and articles must have the same length")
		return
	}

	ids := req.ArticleIDs
	if len(ids) == 0 {
		ids = make([]string, len(req.Articles))
		for i, article := range req.Articles {
			ids[i] = article.ID
		}
	}
	texts := make([]string, len(req.Articles))
	for i, article := range req.Articles {
		texts[i] = article.DocumentText()
	}

	embeddings, _, err := s.deps.Embedder.GetOrCompute(r.Context(), ids, texts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to embed articles: %v", err))
		return
	}

	result := s.deps.Topics.Cluster(r.Context(), req.Query, req.Articles, embeddings, topics.Params{
		MinClusterSize: req.MinClusterSize,
		NrTopics:       req.NrTopics,
	})
	s.respondJSON(w, http.StatusOK, result)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

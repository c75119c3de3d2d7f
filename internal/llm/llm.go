// Package llm provides text-generation and embedding clients for the two
// supported LLM backends: Google Gemini and the Chair-hosted OpenWebUI API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for text generation.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
)

// TextGenerationOptions contains options for text generation.
type TextGenerationOptions struct {
	MaxTokens   int32   // Maximum number of tokens to generate
	Temperature float32 // Temperature for randomness (0.0 to 1.0)
	Model       string  // Model to use (optional, defaults to client's model)
}

// TextGenerator produces a completion for a prompt. Both backends implement
// it; tests substitute stubs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts TextGenerationOptions) (string, error)
	ModelName() string
}

// EmbeddingProvider turns a batch of texts into vectors. Returned vectors
// align positionally with the input texts.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GoogleClient is the Gemini backend. It serves both text generation and
// batch embedding.
type GoogleClient struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewGoogleClient creates a Gemini client. The API key is required; model
// names fall back to the package defaults.
func NewGoogleClient(ctx context.Context, apiKey, modelName, embeddingModel string) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleClient{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// ModelName returns the configured generation model.
func (c *GoogleClient) ModelName() string {
	return c.modelName
}

// GenerateText generates a completion for the prompt.
func (c *GoogleClient) GenerateText(ctx context.Context, prompt string, opts TextGenerationOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.modelName
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(opts.Temperature)
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

// EmbedTexts generates embeddings for the given texts in a single batch
// request. Uses Matryoshka truncation to the default 768 dimensions.
func (c *GoogleClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d", len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for text %d", i)
		}
		vectors[i] = emb.Values
	}

	return vectors, nil
}

// StripFences removes a surrounding markdown code fence from an LLM response
// so the remainder can be parsed as JSON.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

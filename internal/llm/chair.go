package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultChairAPIURL is the Chair-hosted OpenWebUI chat-completions endpoint.
const DefaultChairAPIURL = "https://gpu.aet.cit.tum.de/api/chat/completions"

// DefaultChairModel is the default model served by the Chair backend.
const DefaultChairModel = "llama3.3:latest"

// ChairClient is the OpenWebUI backend. It speaks the OpenAI-style
// chat-completions protocol over HTTP.
type ChairClient struct {
	apiURL    string
	apiKey    string
	modelName string
	client    *http.Client
}

// NewChairClient creates a client for the Chair-hosted OpenWebUI API.
func NewChairClient(apiKey, apiURL, modelName string) (*ChairClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chair API key is required")
	}
	if apiURL == "" {
		apiURL = DefaultChairAPIURL
	}
	if modelName == "" {
		modelName = DefaultChairModel
	}

	return &ChairClient{
		apiURL:    apiURL,
		apiKey:    apiKey,
		modelName: modelName,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// ModelName returns the configured chat model.
func (c *ChairClient) ModelName() string {
	return c.modelName
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateText sends a single-turn chat completion and returns the response
// content.
func (c *ChairClient) GenerateText(ctx context.Context, prompt string, opts TextGenerationOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.modelName
	}

	payload := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("unexpected response format: no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

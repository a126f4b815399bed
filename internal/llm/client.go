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

	"github.com/studyowl-platform/studyowl/internal/config"
)

// Client calls an OpenAI-compatible API. The credential is passed per call
// because different users' requests run under different keys.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	chatModel      string
	embeddingModel string
}

// NewClient creates an LLM client from config.
func NewClient(cfg config.OpenAIConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// ChatModel returns the configured completion model name.
func (c *Client) ChatModel() string {
	return c.chatModel
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// ChatCompletion runs one chat call and returns the assistant's reply with
// its usage block. maxTokens of 0 leaves the limit to the upstream default.
func (c *Client) ChatCompletion(ctx context.Context, apiKey string, messages []Message, maxTokens int) (*ChatResult, error) {
	reqBody := chatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	}

	var resp chatCompletionResponse
	if err := c.post(ctx, apiKey, "/chat/completions", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &ChatResult{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

// Embed returns the embedding vector for text along with its usage block.
func (c *Client) Embed(ctx context.Context, apiKey, text string) ([]float32, Usage, error) {
	reqBody := embeddingRequest{Model: c.embeddingModel, Input: text}

	var resp embeddingResponse
	if err := c.post(ctx, apiKey, "/embeddings", reqBody, &resp); err != nil {
		return nil, Usage{}, err
	}
	if len(resp.Data) == 0 {
		return nil, Usage{}, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, resp.Usage, nil
}

// VerifyKey makes one inexpensive authenticated call to confirm the key is
// accepted. A single attempt; the caller decides what a failure means.
func (c *Client) VerifyKey(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("creating verification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verifying API key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, apiKey, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// apiError extracts the upstream error message when one is present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Errorf("llm api error (status %d): %s", resp.StatusCode, parsed.Error.Message)
	}
	return fmt.Errorf("llm api error (status %d)", resp.StatusCode)
}

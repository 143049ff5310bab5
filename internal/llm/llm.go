package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

// ChatMessage is one turn of a chat-completions conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatResponse is the parsed result of one completion call.
type ChatResponse struct {
	Content      string          `json:"content"`
	Model        string          `json:"model"`
	Usage        core.TokenUsage `json:"usage"`
	FinishReason string          `json:"finish_reason"`
}

// ErrNotConfigured is returned when the client is missing its base URL or key.
var ErrNotConfigured = errors.New("llm client not configured: api_base_url and api_key are required")

// Client talks to any OpenAI-compatible chat-completions endpoint. Failed
// calls retry with exponential backoff on timeouts, connection errors and
// non-2xx responses.
type Client struct {
	cfg config.LLM
	api *openai.Client

	mu         sync.Mutex
	totalUsage core.TokenUsage
	requests   int
}

// NewClient builds a client from the LLM config. The client is inert until
// both the base URL and API key are set; calls then fail fast.
func NewClient(cfg config.LLM) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	return &Client{
		cfg: cfg,
		api: openai.NewClientWithConfig(apiCfg),
	}
}

// IsAvailable reports whether the client has enough configuration to call out.
func (c *Client) IsAvailable() bool {
	return c.cfg.APIBaseURL != "" && c.cfg.APIKey != ""
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Chat runs one completion. temperature < 0 and maxTokens <= 0 fall back to
// the configured defaults.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, temperature float32, maxTokens int) (*ChatResponse, error) {
	if !c.IsAvailable() {
		return nil, ErrNotConfigured
	}
	if temperature < 0 {
		temperature = c.cfg.Temperature
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ModelName,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second // 2s, 4s, 8s
			logger.Warn("retrying llm request", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, errors.New("llm response contained no choices")
			}
			choice := resp.Choices[0]
			usage := core.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
			c.mu.Lock()
			c.requests++
			c.totalUsage.PromptTokens += usage.PromptTokens
			c.totalUsage.CompletionTokens += usage.CompletionTokens
			c.totalUsage.TotalTokens += usage.TotalTokens
			c.mu.Unlock()

			return &ChatResponse{
				Content:      choice.Message.Content,
				Model:        resp.Model,
				Usage:        usage,
				FinishReason: string(choice.FinishReason),
			}, nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("llm request failed: %w", lastErr)
}

// ChatSimple sends a single user prompt, with an optional system prompt,
// and returns just the text.
func (c *Client) ChatSimple(ctx context.Context, prompt, system string) (string, error) {
	var messages []ChatMessage
	if system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	resp, err := c.Chat(ctx, messages, -1, 0)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatStream runs a streaming completion, invoking fn with each content
// delta as it arrives. A non-nil error from fn aborts the stream.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, fn func(delta string) error) error {
	if !c.IsAvailable() {
		return ErrNotConfigured
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ModelName,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("llm stream failed to open: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("llm stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := fn(delta); err != nil {
			return err
		}
	}
}

// CountTokens estimates the token count of text without a tokenizer. CJK
// ideographs weigh about 1.5 tokens each and latin words about 1.3.
func CountTokens(text string) int {
	cjk := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		}
	}
	words := len(strings.Fields(text)) - cjk/2
	if words < 0 {
		words = 0
	}
	return int(float64(cjk)*1.5 + float64(words)*1.3)
}

// Stats summarizes client state and cumulative usage.
type Stats struct {
	Model      string          `json:"model"`
	APIBaseURL string          `json:"api_base_url"`
	Available  bool            `json:"available"`
	Requests   int             `json:"requests"`
	TotalUsage core.TokenUsage `json:"total_usage"`
}

// GetStats returns the client's configuration and cumulative token usage.
func (c *Client) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Model:      c.cfg.ModelName,
		APIBaseURL: c.cfg.APIBaseURL,
		Available:  c.IsAvailable(),
		Requests:   c.requests,
		TotalUsage: c.totalUsage,
	}
}

// retryable reports whether err is transient: request timeouts, connection
// failures and server-side HTTP errors qualify.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 0 ||
			apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeout, refused connection).
	return true
}

// ModelName exposes the configured model for result attribution.
func (c *Client) ModelName() string { return c.cfg.ModelName }

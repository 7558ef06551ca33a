// Package llm wraps the chat-completion API used for anketa extraction and
// knowledge enrichment. The realtime voice connection lives in pkg/bridge;
// this client is request/response only.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 4096
	requestTimeout   = 60 * time.Second
	maxAttempts      = 3
	retryBaseDelay   = time.Second
	retryMaxDelay    = 8 * time.Second
)

// ChatClient is the surface the extraction coordinator and knowledge base
// depend on. Satisfied by *Client and by test fakes.
type ChatClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest carries one chat call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client is a retrying chat-completion client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a Client from the environment. OPENAI_API_KEY is required;
// OPENAI_MODEL and OPENAI_BASE_URL are optional overrides.
func New() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: requestTimeout}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	slog.Info("Chat LLM client configured", "model", model)

	return &Client{api: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Complete performs a single chat completion, retrying rate limits, server
// errors and timeouts with exponential backoff.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	apiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, apiReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("chat completion returned no choices")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		lastErr = err
		if !retryable(err) || attempt == maxAttempts {
			break
		}
		slog.Warn("Chat completion failed, retrying",
			"attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, retryMaxDelay)
	}

	return "", fmt.Errorf("chat completion failed: %w", lastErr)
}

// retryable reports whether an API error is worth retrying: rate limits,
// server-side errors and transport timeouts.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

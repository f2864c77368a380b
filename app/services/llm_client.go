package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/adwatch/config"
	"github.com/go-resty/resty/v2"
)

// ErrLLMDisabled is returned when no completion endpoint is configured
var ErrLLMDisabled = errors.New("llm client is disabled")

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponseFormat asks the model for a structured reply
type ChatResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model          string              `json:"model"`
	Messages       []ChatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// CompletionOptions tunes a single completion call
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// LLMClient produces text completions
type LLMClient interface {
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

// OpenAIClient implements LLMClient against any OpenAI-compatible endpoint
type OpenAIClient struct {
	model  string
	client *resty.Client
}

// NewLLMClient returns nil when the LLM is disabled; callers fall back to templates
func NewLLMClient(cfg config.LLMConfig) LLMClient {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return NewOpenAIClient(cfg)
}

// NewOpenAIClient creates a chat completion client
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIClient{
		model: cfg.Model,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(cfg.APIKey),
	}
}

// Complete sends one chat completion request. No retries: a failed call is
// answered by the caller's fallback.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	if c == nil {
		return "", ErrLLMDisabled
	}

	req := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &ChatResponseFormat{Type: "json_object"}
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&chatErrorEnvelope{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		if env, ok := resp.Error().(*chatErrorEnvelope); ok && env != nil && env.Error.Message != "" {
			return "", fmt.Errorf("llm request failed with status %d: %s", resp.StatusCode(), env.Error.Message)
		}
		return "", fmt.Errorf("llm request failed with status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm returned empty content")
	}
	return content, nil
}

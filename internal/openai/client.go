package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the chat model used for draft generation
	DefaultModel = openai.GPT4oMini
)

var (
	// ErrEmptyPrompt is returned when the prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// ChatAPI defines the interface for chat completion generation
type ChatAPI interface {
	CreateCompletion(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api ChatAPI
}

type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates an adapter for the OpenAI chat API. A non-empty
// baseURL points the client at an OpenAI-compatible server.
func NewOpenAIAdapter(apiKey, baseURL, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateCompletion calls the chat completions API
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return &Client{
		api: NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model),
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateText generates text for the given system message and prompt,
// bounded by maxTokens when positive.
func (c *Client) GenerateText(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	text, err := c.api.CreateCompletion(ctx, system, prompt, maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	return text, nil
}

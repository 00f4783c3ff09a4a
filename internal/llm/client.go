// Package llm provides the completion service used for query analysis,
// expansion, reranking and answer generation.
//
// The client wraps langchaingo's OpenAI-compatible chat API, which works
// against OpenAI itself as well as self-hosted compatible servers
// (vLLM, llama.cpp, LiteLLM proxies).
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var (
	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty response from completion service")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Request describes a single completion call.
type Request struct {
	// System is the system prompt. Optional.
	System string

	// Prompt is the user prompt. Required.
	Prompt string

	// Temperature controls sampling. Classification and extraction calls
	// must use 0 for deterministic output.
	Temperature float64

	// MaxTokens bounds the generated output. Zero uses the client default.
	MaxTokens int
}

// Client is the completion service contract consumed by the pipeline.
type Client interface {
	// Complete generates a free-text response for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// Config holds configuration for the OpenAI-compatible client.
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient implements Client using langchaingo's OpenAI chat API.
type OpenAIClient struct {
	llm    *openai.LLM
	config Config
}

// NewOpenAIClient creates a completion client with the given configuration.
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token, use placeholder for local servers
		apiKey = "placeholder"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &OpenAIClient{
		llm:    client,
		config: config,
	}, nil
}

// Complete generates a response for the request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("%w: prompt required", ErrInvalidConfig)
	}

	messages := buildMessages(req)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Content, nil
}

// buildMessages converts a request into chat messages, system first.
func buildMessages(req Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))
	return messages
}

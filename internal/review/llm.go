// Package review produces written performance reviews of a trading month
// using a chat-completion model.
package review

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

// LLMClient sends a system and user prompt to a chat model.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientFactory builds a client for one API key. Keys are per user, so a
// client is created per request.
type ClientFactory func(apiKey string) LLMClient

// OpenAIClient implements LLMClient using an OpenAI-compatible API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a new client. An empty baseURL uses the default
// OpenAI endpoint.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: 0.4,
	}
}

// OpenAIFactory returns a ClientFactory for model at baseURL.
func OpenAIFactory(model, baseURL string) ClientFactory {
	return func(apiKey string) LLMClient {
		return NewOpenAIClient(apiKey, model, baseURL)
	}
}

// CompleteWithSystem sends a prompt with system message to the LLM.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

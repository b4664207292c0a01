// Package ai is a chat completion backend for OpenAI compatible APIs.
package ai

import (
	"context"
	"log/slog"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = openai.GPT3Dot5Turbo1106
	MaxTokens    = 1024
)

var ErrNoChoices = errors.NewSentinel("completion has no choices")

type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a client for the API at baseURL. Empty baseURL and model fall back to OpenAI and DefaultModel.
func NewClient(apiKey string, baseURL string, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(ErrNoChoices, "create chat completion", slog.String("model", c.model))
	}
	return completion.Choices[0].Message.Content, nil
}

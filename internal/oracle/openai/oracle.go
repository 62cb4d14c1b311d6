package openai

import (
	"context"
	"errors"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// Oracle sends each prompt as a single user message at temperature zero.
type Oracle struct {
	client *Client
	model  string
}

// New creates an Oracle for model.
func New(client *Client, model string) *Oracle {
	return &Oracle{client: client, model: model}
}

// Generate implements ports.Oracle.
func (o *Oracle) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := 0.0
	resp, err := o.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model:       o.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		// An empty choice list is an upstream hiccup, not a verdict.
		return "", domain.Transient(errors.New("openai: response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Package ollama serves inference from a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	providerName     = "ollama"
	defaultServerURL = "http://localhost:11434"
	defaultModel     = "llama3.1"
)

type Client struct {
	llm       llms.Model
	modelName string
}

func New(serverURL, model string) (*Client, error) {
	if serverURL = strings.TrimSpace(serverURL); serverURL == "" {
		serverURL = defaultServerURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &Client{llm: llm, modelName: model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) Provider() string { return providerName }
func (c *Client) Model() string    { return c.modelName }

// Package openai serves inference through any OpenAI compatible chat endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/spigell/prospector/internal/retry"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

const systemPrompt = "You extract facts from business news for an HR technology sales team. " +
	"Answer with the requested value only, without explanations."

type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Client struct {
	chat      chatModel
	modelName string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model = strings.TrimSpace(cfg.Model); cfg.Model == "" {
		cfg.Model = defaultModel
	}

	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Client{chat: chat, modelName: cfg.Model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return "", classify(fmt.Errorf("chat generate: %w", err))
	}
	if resp == nil {
		return "", errors.New("chat model returned no message")
	}

	return strings.TrimSpace(resp.Content), nil
}

// classify keeps rate limits and server failures retryable and marks
// authentication and request errors as permanent.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return err
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "invalid api key"):
		return retry.Permanent(err)
	default:
		return err
	}
}

func (c *Client) Provider() string { return providerName }
func (c *Client) Model() string    { return c.modelName }

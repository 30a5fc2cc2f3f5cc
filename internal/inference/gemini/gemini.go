package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/prospector/internal/retry"
)

const (
	defaultModel = "gemini-2.5-flash"
	providerName = "gemini"
)

const systemInstruction = "You extract facts from business news for an HR technology sales team. " +
	"Answer with the requested value only, without explanations."

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    contentModels
	modelName string
	config    *genai.GenerateContentConfig
}

// New creates a Generator configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model), nil
}

func newGenerator(models contentModels, model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		models:    models,
		modelName: model,
		config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction}},
			},
		},
	}
}

// Generate sends the prompt to Gemini and returns the joined textual parts of the response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", retry.Permanent(errors.New("prompt must not be empty"))
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), g.config)
	if err != nil {
		return "", classify(fmt.Errorf("generate content: %w", err))
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// classify marks client side errors and exhausted quotas as permanent.
// Server errors and short rate limits stay retryable.
func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return err
	case apiErr.Code == http.StatusTooManyRequests:
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") && strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			return retry.Permanent(err)
		}
		return err
	default:
		return retry.Permanent(err)
	}
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

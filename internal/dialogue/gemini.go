package dialogue

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// DefaultModel is the conversational model used when none is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// GeminiClient implements Service using Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

// NewGeminiClient creates a Gemini-backed dialogue service.
func NewGeminiClient(ctx context.Context, apiKey, model string, retry RetryPolicy) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model, retry: retry}, nil
}

// Reply generates an assistant reply for the child's utterance.
func (c *GeminiClient) Reply(ctx context.Context, message string) (string, error) {
	prompt := buildConversePrompt(message)

	var text string
	err := withRetry(ctx, c.retry, func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
		if err != nil {
			if isRateLimitError(err) {
				slog.Warn("dialogue rate limited, will retry", "model", c.model)
			}
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return text, nil
}

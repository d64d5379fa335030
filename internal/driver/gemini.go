package driver

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiDriver generates text using Google's Gemini API.
type GeminiDriver struct {
	client *genai.Client
	model  string
}

// NewGeminiDriver creates a new Gemini driver. An empty model selects
// gemini-2.0-flash.
func NewGeminiDriver(ctx context.Context, apiKey, model string) (*GeminiDriver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiDriver{
		client: client,
		model:  model,
	}, nil
}

// Name returns the name of the driver.
func (d *GeminiDriver) Name() string {
	return "gemini"
}

// Generate sends prompt as a single user turn.
func (d *GeminiDriver) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := d.client.Models.GenerateContent(ctx, d.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

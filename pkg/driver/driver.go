// Package driver exposes the text generation drivers so other programs can
// embed them or supply their own implementation to the chat server.
package driver

import (
	"context"
	"time"

	"github.com/yeet-socket/yeet/internal/driver"
)

// Re-export types from internal/driver for external use
type (
	Driver        = driver.Driver
	GenericDriver = driver.GenericDriver
	OpenAIDriver  = driver.OpenAIDriver
	GeminiDriver  = driver.GeminiDriver
	CachedDriver  = driver.CachedDriver
)

// ErrEmptyCompletion is returned when a backend answers without text.
var ErrEmptyCompletion = driver.ErrEmptyCompletion

// NewGenericDriver creates a driver that echoes the prompt.
func NewGenericDriver() Driver {
	return driver.NewGenericDriver()
}

// NewOpenAIDriver creates a driver for an OpenAI-compatible chat completions API.
func NewOpenAIDriver(baseURL, apiKey, model string, timeout time.Duration) Driver {
	return driver.NewOpenAIDriver(baseURL, apiKey, model, timeout)
}

// NewGeminiDriver creates a driver backed by the Gemini API.
func NewGeminiDriver(ctx context.Context, apiKey, model string) (Driver, error) {
	d, err := driver.NewGeminiDriver(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// WithCache wraps next so identical prompts reuse a completion for ttl.
func WithCache(next Driver, ttl time.Duration) *CachedDriver {
	return driver.NewCachedDriver(next, ttl)
}

// Package driver provides the text generation backends the server calls for
// PROMPT messages.
package driver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/config"
)

// Driver turns a prompt into a reply. Implementations must be safe for
// concurrent use; every session calls Generate from its own goroutine.
type Driver interface {
	// Name returns the name of the driver.
	Name() string
	// Generate returns the completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when a backend answers without any text.
var ErrEmptyCompletion = errors.New("empty completion")

// New creates the driver selected by cfg.Provider. When cfg.CacheTTL is
// positive the driver is wrapped in a reply cache.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Driver, error) {
	var (
		d   Driver
		err error
	)

	switch cfg.Provider {
	case "", "generic":
		d = NewGenericDriver()
	case "openai":
		d = NewOpenAIDriver(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	case "gemini":
		d, err = NewGeminiDriver(context.Background(), cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("Text generation driver ready", zap.String("driver", d.Name()))
	}

	if cfg.CacheTTL > 0 {
		return NewCachedDriver(d, cfg.CacheTTL), nil
	}
	return d, nil
}

package cleanup

import (
	"context"
	"fmt"

	"shift/internal/llm"
)

// Generation defaults. The token budget has to fit a whole article echoed back.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 32768
)

// AdapterConfig tunes the request sent to the text generation service.
type AdapterConfig struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Adapter builds the cleanup prompt and calls the generation service.
// It makes exactly one call per Request.
type Adapter struct {
	gen llm.Generator
	cfg AdapterConfig
}

// DefaultAdapterConfig returns the built-in prompt and generation settings.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}
}

// NewAdapter creates an Adapter. An empty prompt or a zero token budget falls
// back to the default; Temperature is used as given, so 0 means deterministic.
func NewAdapter(gen llm.Generator, cfg AdapterConfig) *Adapter {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Adapter{gen: gen, cfg: cfg}
}

// Messages returns the system and user messages for rawMarkdown.
func (a *Adapter) Messages(rawMarkdown string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: a.cfg.SystemPrompt},
		{Role: llm.RoleUser, Content: UserMessage(rawMarkdown)},
	}
}

// Request sends rawMarkdown for cleanup and returns the service's reply verbatim.
// Any failure of the call is wrapped in ErrService.
func (a *Adapter) Request(ctx context.Context, rawMarkdown string) (string, error) {
	text, err := a.gen.Chat(ctx, a.Messages(rawMarkdown), llm.Options{
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrService, err)
	}
	return text, nil
}

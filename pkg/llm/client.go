// Package llm provides chat completion clients for SQL generation.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/config"
)

// Client generates a single completion from a system prompt and a user
// prompt. Implementations exist per provider.
type Client interface {
	// Complete sends one request and returns the model's text output.
	Complete(ctx context.Context, system, prompt string) (*CompletionResult, error)

	// Model returns the configured model name.
	Model() string
}

// CompletionResult carries the generated text plus token accounting.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// New builds the client named by cfg.Provider.
func New(cfg *config.LLMConfig, logger *zap.Logger) (Client, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("llm provider is not configured: model and api key are required")
	}

	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg, logger), nil
	case "openai":
		return newOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

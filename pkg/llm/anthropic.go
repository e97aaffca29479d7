package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/config"
	"github.com/asklantern/lantern-engine/pkg/retry"
)

type anthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

func newAnthropicClient(cfg *config.LLMConfig, logger *zap.Logger) *anthropicClient {
	opts := []anthropic.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:    logger.Named("llm"),
	}
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, system, prompt string) (*CompletionResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	var resp anthropic.MessagesResponse
	err := retry.DoIfRetryable(reqCtx, retry.DefaultConfig(), func() error {
		var callErr error
		resp, callErr = c.client.CreateMessages(reqCtx, anthropic.MessagesRequest{
			Model:     anthropic.Model(c.model),
			System:    system,
			MaxTokens: c.maxTokens,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(prompt),
			},
		})
		if callErr != nil {
			return classifyError(callErr)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("completion failed",
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	content := resp.GetFirstContentText()
	if content == "" {
		return nil, fmt.Errorf("empty completion from model %s", c.model)
	}

	c.logger.Info("completion finished",
		zap.String("model", c.model),
		zap.Int("inputTokens", resp.Usage.InputTokens),
		zap.Int("outputTokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &CompletionResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

var _ Client = (*anthropicClient)(nil)

package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// DefaultClaudeModel is used when no model is configured.
const DefaultClaudeModel = "claude-haiku-4-5-20251001"

// ClaudeSource extracts case facts with the Anthropic Messages API.
type ClaudeSource struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewClaudeSource creates a Claude-backed source.
func NewClaudeSource(cfg Config, logger *slog.Logger) *ClaudeSource {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ClaudeSource{client: &client, model: model, maxTokens: maxTokens, logger: logger}
}

// Name returns the provider name.
func (c *ClaudeSource) Name() string { return ProviderAnthropic }

// Extract sends the chunk to Claude and parses the JSON artifacts.
func (c *ClaudeSource) Extract(ctx context.Context, req Request) (*models.Extraction, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(BuildPrompt(req)),
			),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}

	var responseText string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			responseText = resp.Content[i].Text
			break
		}
	}
	c.logger.Debug("claude enrichment response", "document_id", req.DocumentID, "bytes", len(responseText))
	return ParseResponse(responseText, req.DocumentID)
}

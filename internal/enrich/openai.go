package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// OpenAISource extracts case facts with the OpenAI Chat Completions API or
// any compatible endpoint set through BaseURL.
type OpenAISource struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAISource creates an OpenAI-backed source.
func NewOpenAISource(cfg Config, logger *slog.Logger) *OpenAISource {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &OpenAISource{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Name returns the provider name.
func (o *OpenAISource) Name() string { return ProviderOpenAI }

// Extract sends the chunk to the chat completions endpoint in JSON mode.
func (o *OpenAISource) Extract(ctx context.Context, req Request) (*models.Extraction, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	o.logger.Debug("openai enrichment response", "document_id", req.DocumentID, "tokens", resp.Usage.TotalTokens)
	return ParseResponse(resp.Choices[0].Message.Content, req.DocumentID)
}

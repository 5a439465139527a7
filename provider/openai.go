package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ZaguanLabs/tlstream"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements AIProvider using OpenAI's chat completions
// streaming API. It also works against OpenAI-compatible gateways.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4.1-nano")
	Temperature float32 // Temperature for generation (default: 0.3)
	MaxTokens   int     // Maximum generated tokens (default: 4096)
	BaseURL     string  // Custom base URL, e.g. an AI gateway (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	config.HTTPClient = newHTTPClient()
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// StreamCompletion streams a chat completion, calling onDelta for each
// content delta.
func (p *OpenAIProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(tlstream.TextDelta) error) (*tlstream.Completion, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature:   p.temperature,
		MaxTokens:     p.maxTokens,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, wrapOpenAIError("OpenAI stream request failed", err)
	}
	defer stream.Close()

	var (
		full         strings.Builder
		finishReason string
		usage        tlstream.Usage
	)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapOpenAIError("OpenAI stream failed", err)
		}

		if resp.Usage != nil {
			usage = tlstream.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			}
		}

		for _, choice := range resp.Choices {
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
			if choice.Delta.Content == "" {
				continue
			}
			full.WriteString(choice.Delta.Content)
			if err := onDelta(tlstream.TextDelta{Text: choice.Delta.Content}); err != nil {
				return nil, err
			}
		}
	}

	return &tlstream.Completion{
		Text:         full.String(),
		FinishReason: normalizeFinishReason(finishReason),
		Usage:        usage,
	}, nil
}

// wrapOpenAIError converts a go-openai error into a classified ProviderError.
// Context errors are returned unchanged so callers can detect cancellation.
func wrapOpenAIError(message string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return tlstream.NewProviderError(message, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return tlstream.NewProviderError(message, reqErr.HTTPStatusCode, err)
	}

	return tlstream.NewProviderError(message, 0, err)
}

// Verify OpenAIProvider implements AIProvider
var _ AIProvider = (*OpenAIProvider)(nil)

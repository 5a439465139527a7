package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/ZaguanLabs/tlstream"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// ResponsesProvider implements AIProvider using OpenAI's Responses API.
type ResponsesProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewResponsesProvider creates a provider for the Responses API. It shares
// OpenAIConfig with the chat completions provider.
func NewResponsesProvider(cfg OpenAIConfig) *ResponsesProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(newHTTPClient()),
		// No automatic retries: a failed request is reported to the client.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
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

	return &ResponsesProvider{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: float64(temperature),
		maxTokens:   int64(maxTokens),
	}
}

// StreamCompletion streams a response, calling onDelta for each output text
// delta.
func (p *ResponsesProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(tlstream.TextDelta) error) (*tlstream.Completion, error) {
	stream := p.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Model:           shared.ResponsesModel(p.model),
		Instructions:    openai.String(req.SystemPrompt),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
		Temperature:     openai.Float(p.temperature),
		MaxOutputTokens: openai.Int(p.maxTokens),
	})
	defer stream.Close()

	var (
		full         strings.Builder
		finishReason string
		usage        tlstream.Usage
	)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "response.output_text.delta":
			delta := event.AsResponseOutputTextDelta().Delta
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if err := onDelta(tlstream.TextDelta{Text: delta}); err != nil {
				return nil, err
			}

		case "response.completed", "response.incomplete":
			resp := event.Response
			finishReason = string(resp.Status)
			if reason := resp.IncompleteDetails.Reason; reason != "" {
				finishReason = string(reason)
			}
			usage = tlstream.Usage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
			}

		case "response.failed":
			msg := event.Response.Error.Message
			if msg == "" {
				msg = "response failed"
			}
			return nil, tlstream.NewProviderError("OpenAI response failed", 0, errors.New(msg))

		case "error":
			errEvent := event.AsError()
			return nil, tlstream.NewProviderError("OpenAI stream error", 0,
				errors.New(errEvent.Code+": "+errEvent.Message))
		}
	}

	if err := stream.Err(); err != nil {
		return nil, wrapResponsesError(err)
	}

	return &tlstream.Completion{
		Text:         full.String(),
		FinishReason: normalizeFinishReason(finishReason),
		Usage:        usage,
	}, nil
}

func wrapResponsesError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return tlstream.NewProviderError("OpenAI responses request failed", apiErr.StatusCode, err)
	}

	return tlstream.NewProviderError("OpenAI responses request failed", 0, err)
}

// Verify ResponsesProvider implements AIProvider
var _ AIProvider = (*ResponsesProvider)(nil)

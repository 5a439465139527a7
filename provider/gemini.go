package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaguanLabs/tlstream"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used by the Gemini provider when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider implements AIProvider using the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string  // default: "gemini-2.5-flash"
	Temperature float32 // default: 0.3
	MaxTokens   int     // default: 4096
	BaseURL     string  // optional endpoint override
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = DefaultGeminiModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   int32(maxTokens),
	}, nil
}

// StreamCompletion streams generated content, calling onDelta for each
// chunk of text.
func (p *GeminiProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(tlstream.TextDelta) error) (*tlstream.Completion, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(p.temperature),
		MaxOutputTokens:   p.maxTokens,
	}

	var (
		full         strings.Builder
		finishReason string
		usage        tlstream.Usage
	)

	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, genai.Text(req.Prompt), config) {
		if err != nil {
			return nil, wrapGeminiError(err)
		}

		if resp.UsageMetadata != nil {
			usage = tlstream.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			finishReason = string(resp.Candidates[0].FinishReason)
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onDelta(tlstream.TextDelta{Text: text}); err != nil {
			return nil, err
		}
	}

	return &tlstream.Completion{
		Text:         full.String(),
		FinishReason: normalizeFinishReason(finishReason),
		Usage:        usage,
	}, nil
}

func wrapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return tlstream.NewProviderError("Gemini request failed", apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return tlstream.NewProviderError("Gemini request failed", apiErrPtr.Code, err)
	}

	return tlstream.NewProviderError("Gemini request failed", 0, err)
}

// Verify GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

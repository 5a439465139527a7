package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaguanLabs/tlstream"
)

// Type names a model provider backend.
type Type string

const (
	TypeOpenAI          Type = "openai"
	TypeOpenAIResponses Type = "openai-responses"
	TypeGemini          Type = "gemini"
	TypeMock            Type = "mock"
)

// Config selects and configures a provider.
type Config struct {
	Type        Type
	Model       string
	Temperature float32
	MaxTokens   int

	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Cloudflare AI Gateway. When both are set and no explicit base URL is
	// given, OpenAI traffic is routed through the gateway.
	CloudflareAccountID string
	GatewayID           string

	GeminiAPIKey  string
	GeminiBaseURL string

	// RequestsPerMinute throttles provider calls; 0 disables throttling.
	RequestsPerMinute int

	// RateLimitMaxWait bounds how long a throttled request queues before it
	// fails as rate limited; 0 waits until the request context ends.
	RateLimitMaxWait time.Duration

	// MaxRetries is how often a stream that failed before producing any
	// output is reopened; 0 disables retries.
	MaxRetries int
}

// GatewayBaseURL returns the Cloudflare AI Gateway endpoint for OpenAI.
func GatewayBaseURL(accountID, gatewayID string) string {
	return fmt.Sprintf("https://gateway.ai.cloudflare.com/v1/%s/%s/openai", accountID, gatewayID)
}

// ResolveOpenAIBaseURL returns the base URL for the OpenAI providers: an explicit
// override wins, then the AI gateway, then the SDK default.
func (c Config) ResolveOpenAIBaseURL() string {
	if c.OpenAIBaseURL != "" {
		return c.OpenAIBaseURL
	}
	if c.CloudflareAccountID != "" && c.GatewayID != "" {
		return GatewayBaseURL(c.CloudflareAccountID, c.GatewayID)
	}
	return ""
}

// New creates the provider named by cfg.Type.
func New(ctx context.Context, cfg Config) (AIProvider, error) {
	var (
		p   AIProvider
		err error
	)

	switch Type(strings.ToLower(string(cfg.Type))) {
	case TypeOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("provider %q requires an OpenAI API key", TypeOpenAI)
		}
		p = NewOpenAIProvider(cfg.openAIConfig())
	case TypeOpenAIResponses:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("provider %q requires an OpenAI API key", TypeOpenAIResponses)
		}
		p = NewResponsesProvider(cfg.openAIConfig())
	case TypeGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("provider %q requires a Gemini API key", TypeGemini)
		}
		p, err = NewGeminiProvider(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			BaseURL:     cfg.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
	case TypeMock:
		p = NewMockProvider()
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}

	if cfg.RequestsPerMinute > 0 {
		p = tlstream.NewRateLimitedProvider(p, tlstream.RateLimitConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxWait:           cfg.RateLimitMaxWait,
		})
	}

	if cfg.MaxRetries > 0 {
		retry := tlstream.DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries
		p = tlstream.NewRetryableProvider(p, retry)
	}

	return p, nil
}

func (c Config) openAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.OpenAIAPIKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		BaseURL:     c.ResolveOpenAIBaseURL(),
	}
}

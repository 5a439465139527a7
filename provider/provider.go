// Package provider defines the model provider implementations.
package provider

import (
	"strings"

	"github.com/ZaguanLabs/tlstream"
)

// AIProvider is the interface for streaming model backends.
// This is an alias to the main package interface for convenience.
type AIProvider = tlstream.AIProvider

// CompletionRequest is an alias to the main package type.
type CompletionRequest = tlstream.CompletionRequest

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4.1-nano"

	// DefaultTemperature is used when no temperature is configured.
	DefaultTemperature float32 = 0.3

	// DefaultMaxTokens caps the length of a generated translation.
	DefaultMaxTokens = 4096
)

// normalizeFinishReason maps provider-specific finish reasons onto the
// lower-case names used by the stream protocol.
func normalizeFinishReason(reason string) string {
	switch strings.ToLower(reason) {
	case "", "stop", "completed", "finish_reason_unspecified":
		return tlstream.FinishReasonStop
	case "length", "max_tokens", "max_output_tokens", "incomplete":
		return "length"
	case "content_filter", "safety", "recitation", "blocklist", "prohibited_content", "spii":
		return "content-filter"
	case "tool_calls", "function_call":
		return "tool-calls"
	default:
		return "other"
	}
}

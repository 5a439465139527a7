package tlstream

import (
	"strings"
	"time"
)

const (
	// KeyNamespace is the fixed tag every cache key starts with.
	KeyNamespace = "translate"

	// DefaultTTL is how long a finished translation stays cached (7 days).
	DefaultTTL = 604800 * time.Second

	// FinishReasonStop marks a completion that ended normally.
	FinishReasonStop = "stop"
)

// TranslationRequest is a single translation submitted by the client.
type TranslationRequest struct {
	Text           string // Text to translate, sent to the model verbatim
	SourceLanguage string // Source language code (e.g., "en")
	TargetLanguage string // Target language code (e.g., "ja")
}

// Validate checks that the request can be translated.
func (r TranslationRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ValidationError{Field: "prompt", Message: "text must not be empty"}
	}
	if strings.TrimSpace(r.SourceLanguage) == "" {
		return &ValidationError{Field: "sourceLang", Message: "source language is required"}
	}
	if strings.TrimSpace(r.TargetLanguage) == "" {
		return &ValidationError{Field: "targetLang", Message: "target language is required"}
	}
	return nil
}

// Key returns the cache key for this request.
func (r TranslationRequest) Key() string {
	return DeriveKey(r.Text, r.SourceLanguage, r.TargetLanguage)
}

// TextDelta is one incremental piece of model output.
type TextDelta struct {
	Text string
}

// Usage reports token counts for a completion, when the provider returns them.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Completion is the final event of a provider stream.
type Completion struct {
	Text         string // Full accumulated text
	FinishReason string // Provider finish reason, normalized to lower case
	Usage        Usage
}

// FinishInfo is handed to a StreamWriter when a stream ends successfully.
type FinishInfo struct {
	Reason string
	Usage  Usage
	Cached bool // True when the text was replayed from the cache
}

// Result summarizes a finished Translate call.
type Result struct {
	Key    string
	Text   string
	Cached bool
}

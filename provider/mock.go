package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZaguanLabs/tlstream"
)

// MockProvider is a scripted provider for local development and tests.
// It streams the translation word by word.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	Delay        time.Duration     // Pause before each delta
	Err          error             // Returned after FailAfter deltas, if set
	FailAfter    int

	mu          sync.Mutex
	callCount   int
	lastRequest *CompletionRequest
}

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{
			"Hello":                      "こんにちは",
			"Hello World":                "こんにちは世界",
			"Good morning, how are you?": "おはようございます、お元気ですか？",
		},
	}
}

// StreamCompletion streams the scripted translation. Unknown prompts are
// echoed in brackets.
func (m *MockProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(tlstream.TextDelta) error) (*tlstream.Completion, error) {
	m.mu.Lock()
	m.callCount++
	m.lastRequest = &req
	m.mu.Unlock()

	text, ok := m.Translations[strings.TrimSpace(req.Prompt)]
	if !ok {
		text = fmt.Sprintf("[%s]", req.Prompt)
	}

	var full strings.Builder
	for i, part := range strings.SplitAfter(text, " ") {
		if m.Err != nil && i >= m.FailAfter {
			return nil, m.Err
		}
		if m.Delay > 0 {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		full.WriteString(part)
		if err := onDelta(tlstream.TextDelta{Text: part}); err != nil {
			return nil, err
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	return &tlstream.Completion{
		Text:         full.String(),
		FinishReason: tlstream.FinishReasonStop,
		Usage: tlstream.Usage{
			PromptTokens:     len(strings.Fields(req.SystemPrompt + " " + req.Prompt)),
			CompletionTokens: len(strings.Fields(text)),
		},
	}, nil
}

// CallCount returns how many times StreamCompletion was called.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Reset resets the call count and last request.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastRequest = nil
}

// Verify MockProvider implements AIProvider
var _ AIProvider = (*MockProvider)(nil)

package tlstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "prompt", Message: "must not be empty"}

	if err.Error() != "invalid prompt: must not be empty" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestProviderError(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ProviderError{Kind: KindRateLimited, Message: "rate limited", Cause: cause, Retryable: true}

	if err.Error() != "provider error: rate limited: underlying error" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap() should return the cause")
	}

	// Without cause
	err2 := &ProviderError{Message: "simple error"}
	if err2.Error() != "provider error: simple error" {
		t.Errorf("unexpected error message: %s", err2.Error())
	}
}

func TestCacheError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CacheError{Op: "get", Key: "translate:en:ja:abc", Cause: cause}

	if err.Error() != "cache error: get translate:en:ja:abc: connection refused" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap() should return the cause")
	}
	if ClassifyError(fmt.Errorf("wrapped: %w", err)) != KindCacheUnavailable {
		t.Error("wrapped cache errors should classify as cache_unavailable")
	}
}

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindModelUnavailable},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusInternalServerError, KindModelUnavailable},
		{http.StatusServiceUnavailable, KindModelUnavailable},
		{http.StatusBadRequest, KindUnknown},
	}

	for _, tt := range tests {
		if got := KindFromStatus(tt.status); got != tt.want {
			t.Errorf("KindFromStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestNewProviderError(t *testing.T) {
	err := NewProviderError("stream failed", http.StatusTooManyRequests, errors.New("slow down"))
	if err.Kind != KindRateLimited || !err.Retryable {
		t.Errorf("429: got kind=%s retryable=%v", err.Kind, err.Retryable)
	}

	err = NewProviderError("stream failed", http.StatusUnauthorized, errors.New("bad key"))
	if err.Kind != KindAuth || err.Retryable {
		t.Errorf("401: got kind=%s retryable=%v", err.Kind, err.Retryable)
	}

	// Unknown status falls back to inspecting the cause.
	err = NewProviderError("stream failed", 0, context.DeadlineExceeded)
	if err.Kind != KindTimeout || !err.Retryable {
		t.Errorf("deadline: got kind=%s retryable=%v", err.Kind, err.Retryable)
	}

	err = NewProviderError("stream failed", 0, nil)
	if err.Kind != KindUnknown || err.Retryable {
		t.Errorf("nil cause: got kind=%s retryable=%v", err.Kind, err.Retryable)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"provider kind wins", fmt.Errorf("ctx: %w", &ProviderError{Kind: KindAuth, Message: "timeout"}), KindAuth},
		{"deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutError{}, KindTimeout},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), KindNetwork},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("unreachable")}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, KindNetwork},
		{"rate limit message", errors.New("Rate limit reached for requests"), KindRateLimited},
		{"quota message", errors.New("You exceeded your current quota"), KindRateLimited},
		{"auth message", errors.New("Incorrect API key provided"), KindAuth},
		{"overloaded message", errors.New("The engine is currently overloaded"), KindModelUnavailable},
		{"eof message", errors.New("unexpected EOF"), KindNetwork},
		{"unknown", errors.New("something odd"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	en := UserMessage(KindRateLimited, "en")
	if en != userMessages["en"][KindRateLimited] {
		t.Errorf("unexpected english message: %s", en)
	}

	if got := UserMessage(KindRateLimited, "ja_JP"); got != userMessages["ja"][KindRateLimited] {
		t.Errorf("ja_JP should use the japanese catalog, got: %s", got)
	}

	if got := UserMessage(KindTimeout, "fr"); got != userMessages["en"][KindTimeout] {
		t.Errorf("unsupported language should fall back to english, got: %s", got)
	}

	if got := UserMessage(KindCacheUnavailable, "ja"); got != userMessages["ja"][KindUnknown] {
		t.Errorf("kind without a message should use the generic text, got: %s", got)
	}
}

package tlstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind classifies a failure for logging and for choosing the message
// shown to the user.
type ErrorKind string

const (
	KindCacheUnavailable ErrorKind = "cache_unavailable"
	KindRateLimited      ErrorKind = "rate_limited"
	KindTimeout          ErrorKind = "timeout"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindAuth             ErrorKind = "auth_error"
	KindNetwork          ErrorKind = "network_error"
	KindUnknown          ErrorKind = "unknown"
)

// ValidationError indicates a malformed translation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ProviderError indicates a model provider failure (API error, rate limit, etc.).
type ProviderError struct {
	Kind      ErrorKind
	Message   string
	Cause     error
	Retryable bool // Whether resubmitting the request may succeed
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache store failure. It is logged, never returned
// to the client.
type CacheError struct {
	Op    string
	Key   string
	Cause error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s %s: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("cache error: %s %s", e.Op, e.Key)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// KindFromStatus maps an HTTP status code returned by a provider API to an
// error kind. Unknown codes map to KindUnknown.
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusNotFound:
		return KindModelUnavailable
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindModelUnavailable
	default:
		return KindUnknown
	}
}

// NewProviderError wraps a provider SDK error, classifying it by HTTP status
// when one is known (status <= 0 means unknown).
func NewProviderError(message string, status int, cause error) *ProviderError {
	kind := KindUnknown
	if status > 0 {
		kind = KindFromStatus(status)
	}
	if kind == KindUnknown && cause != nil {
		kind = ClassifyError(cause)
	}
	return &ProviderError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// ClassifyError inspects err and returns its kind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Kind != "" && providerErr.Kind != KindUnknown {
		return providerErr.Kind
	}

	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		return KindCacheUnavailable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the last resort when no typed error is available.
func classifyMessage(msg string) ErrorKind {
	msg = strings.ToLower(msg)

	patterns := []struct {
		kind     ErrorKind
		patterns []string
	}{
		{KindRateLimited, []string{"rate limit", "too many requests", "429", "quota"}},
		{KindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
		{KindAuth, []string{"unauthorized", "invalid api key", "incorrect api key", "401", "403", "permission"}},
		{KindNetwork, []string{"connection refused", "connection reset", "no such host", "eof"}},
		{KindModelUnavailable, []string{"model", "overloaded", "503", "502"}},
	}

	for _, p := range patterns {
		for _, pattern := range p.patterns {
			if strings.Contains(msg, pattern) {
				return p.kind
			}
		}
	}
	return KindUnknown
}

func isRetryableKind(kind ErrorKind) bool {
	switch kind {
	case KindRateLimited, KindTimeout, KindNetwork, KindModelUnavailable:
		return true
	default:
		return false
	}
}

// userMessages holds the sanitized, client-facing text per language.
var userMessages = map[string]map[ErrorKind]string{
	"en": {
		KindRateLimited:      "Translation service is temporarily unavailable due to high demand. Please try again in a moment.",
		KindTimeout:          "The translation request timed out. Please try with a shorter text.",
		KindModelUnavailable: "The translation model is currently unavailable. Please try again later.",
		KindAuth:             "The translation service is not configured correctly. Please contact the administrator.",
		KindNetwork:          "Could not reach the translation service. Please check your connection and try again.",
		KindUnknown:          "An unexpected error occurred during translation.",
	},
	"ja": {
		KindRateLimited:      "翻訳サービスが混み合っています。しばらくしてから再度お試しください。",
		KindTimeout:          "翻訳リクエストがタイムアウトしました。短いテキストでお試しください。",
		KindModelUnavailable: "翻訳モデルは現在利用できません。後ほど再度お試しください。",
		KindAuth:             "翻訳サービスの設定に問題があります。管理者にお問い合わせください。",
		KindNetwork:          "翻訳サービスに接続できませんでした。接続を確認して再度お試しください。",
		KindUnknown:          "翻訳中に予期しないエラーが発生しました。",
	},
}

// UserMessage returns the sanitized message for kind in lang, falling back
// to English and then to the generic message.
func UserMessage(kind ErrorKind, lang string) string {
	catalog, ok := userMessages[normalizeBaseLang(lang)]
	if !ok {
		catalog = userMessages["en"]
	}
	if msg, ok := catalog[kind]; ok {
		return msg
	}
	if msg, ok := userMessages["en"][kind]; ok {
		return msg
	}
	return catalog[KindUnknown]
}

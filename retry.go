package tlstream

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes fn with exponential backoff while it fails with a
// retryable error.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			delay := cfg.BaseDelay * time.Duration(1<<attempt)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Output already reached the caller; a second attempt would repeat it.
	var partial errPartialStream
	if errors.As(err, &partial) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// errPartialStream marks a failure after output already reached the caller.
type errPartialStream struct{ err error }

func (e errPartialStream) Error() string { return e.err.Error() }
func (e errPartialStream) Unwrap() error { return e.err }

// RetryableProvider wraps an AIProvider with retry logic. A stream is only
// retried while nothing has been delivered; once a delta reached onDelta the
// failure is returned as-is.
type RetryableProvider struct {
	provider AIProvider
	config   RetryConfig
}

// NewRetryableProvider creates a new provider with retry logic.
func NewRetryableProvider(provider AIProvider, cfg RetryConfig) *RetryableProvider {
	return &RetryableProvider{
		provider: provider,
		config:   cfg,
	}
}

// StreamCompletion implements AIProvider with retry logic.
func (p *RetryableProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(TextDelta) error) (*Completion, error) {
	completion, err := WithRetry(ctx, p.config, func() (*Completion, error) {
		delivered := false
		c, err := p.provider.StreamCompletion(ctx, req, func(d TextDelta) error {
			delivered = true
			return onDelta(d)
		})
		if err != nil && delivered {
			return nil, errPartialStream{err}
		}
		return c, err
	})

	var partial errPartialStream
	if errors.As(err, &partial) {
		return nil, partial.err
	}
	return completion, err
}

var _ AIProvider = (*RetryableProvider)(nil)

package tlstream

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that paces provider calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	maxWait    time.Duration
	now        func() time.Time
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int           // Sustained provider calls per minute
	BurstSize         int           // Calls allowed at once (default: RequestsPerMinute)
	MaxWait           time.Duration // Longest a caller queues before giving up (0 = until ctx is done)
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rpm := float64(cfg.RequestsPerMinute)
	if rpm <= 0 {
		rpm = 60
	}

	burst := float64(cfg.BurstSize)
	if burst <= 0 {
		burst = rpm
	}

	return &RateLimiter{
		tokens:     burst,
		maxTokens:  burst,
		refillRate: rpm / 60.0,
		lastRefill: time.Now(),
		maxWait:    cfg.MaxWait,
		now:        time.Now,
	}
}

// Wait blocks until a token is available. It returns ErrRateLimitExceeded
// when the wait would exceed MaxWait, or ctx.Err() if ctx ends first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	var waited time.Duration
	for {
		delay, ok := r.reserve()
		if ok {
			return nil
		}

		if r.maxWait > 0 && waited+delay > r.maxWait {
			return ErrRateLimitExceeded
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			waited += delay
		}
	}
}

// TryAcquire takes a token without blocking and reports whether it got one.
func (r *RateLimiter) TryAcquire() bool {
	_, ok := r.reserve()
	return ok
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens
}

// reserve takes a token if one is available, otherwise it returns how long
// until the next token is due.
func (r *RateLimiter) reserve() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return 0, true
	}

	missing := 1 - r.tokens
	return time.Duration(missing / r.refillRate * float64(time.Second)), false
}

// refill must be called with mu held.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now

	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
}

// ErrRateLimitExceeded is returned by RateLimiter.Wait when MaxWait is hit.
var ErrRateLimitExceeded = &ProviderError{
	Kind:      KindRateLimited,
	Message:   "local rate limit exceeded",
	Retryable: true,
}

// RateLimitedProvider wraps an AIProvider with client-side rate limiting so a
// burst of cache misses does not exceed the provider account's quota.
type RateLimitedProvider struct {
	provider AIProvider
	limiter  *RateLimiter
}

// NewRateLimitedProvider creates a new rate-limited provider.
func NewRateLimitedProvider(provider AIProvider, cfg RateLimitConfig) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(cfg),
	}
}

// StreamCompletion waits for a token, then delegates to the wrapped provider.
func (p *RateLimitedProvider) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(TextDelta) error) (*Completion, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.StreamCompletion(ctx, req, onDelta)
}

// Limiter returns the underlying rate limiter for inspection.
func (p *RateLimitedProvider) Limiter() *RateLimiter {
	return p.limiter
}

var _ AIProvider = (*RateLimitedProvider)(nil)

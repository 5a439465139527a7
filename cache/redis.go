package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultConnectTimeout  = 5 * time.Second
	defaultOpTimeout       = 2 * time.Second
	defaultBreakerFailures = 3
	defaultBreakerCooldown = 30 * time.Second
)

// ErrStoreClosed is returned by operations on a RedisStore after Close.
var ErrStoreClosed = errors.New("redis cache closed")

// RedisStore is a redis-backed, fail-open translation store.
//
// The connection is established lazily on first use and reused afterwards.
// Concurrent first callers share a single in-flight connect. A circuit
// breaker skips the store entirely for a cooldown period after repeated
// failures.
type RedisStore struct {
	dial           func(ctx context.Context) (*redis.Client, error)
	client         atomic.Pointer[redis.Client]
	closed         atomic.Bool
	connect        singleflight.Group
	breaker        *gobreaker.CircuitBreaker
	keyPrefix      string
	connectTimeout time.Duration
	opTimeout      time.Duration
	logger         *zap.Logger
}

// RedisConfig holds configuration for the redis store.
type RedisConfig struct {
	URL             string        // Redis connection URL (e.g., "redis://localhost:6379/0")
	KeyPrefix       string        // Optional prefix prepended to every key
	ConnectTimeout  time.Duration // Bound on the first connect (default: 5s)
	OpTimeout       time.Duration // Bound on each GET/SET (default: 2s)
	BreakerFailures uint32        // Consecutive failures that open the breaker (default: 3)
	BreakerCooldown time.Duration // How long the breaker stays open (default: 30s)
	Logger          *zap.Logger
}

// NewRedisStore creates a redis store. No connection is made until the first
// operation.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	s := newRedisStore(cfg, nil)
	opts.DialTimeout = s.connectTimeout

	s.dial = func(ctx context.Context) (*redis.Client, error) {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return client, nil
	}

	return s, nil
}

// NewRedisStoreFromClient creates a RedisStore around an existing client,
// which is used as-is without an initial PING.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	s := newRedisStore(cfg, func(context.Context) (*redis.Client, error) {
		return client, nil
	})
	s.client.Store(client)
	return s
}

func newRedisStore(cfg RedisConfig, dial func(context.Context) (*redis.Client, error)) *RedisStore {
	s := &RedisStore{
		dial:           dial,
		keyPrefix:      cfg.KeyPrefix,
		connectTimeout: cfg.ConnectTimeout,
		opTimeout:      cfg.OpTimeout,
		logger:         cfg.Logger,
	}
	if s.connectTimeout <= 0 {
		s.connectTimeout = defaultConnectTimeout
	}
	if s.opTimeout <= 0 {
		s.opTimeout = defaultOpTimeout
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller that went away says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrStoreClosed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("cache circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return s
}

// conn returns the shared client, connecting on first use. It never dials
// once the store is closed.
func (s *RedisStore) conn(ctx context.Context) (*redis.Client, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if c := s.client.Load(); c != nil {
		return c, nil
	}

	ch := s.connect.DoChan("connect", func() (interface{}, error) {
		if s.closed.Load() {
			return nil, ErrStoreClosed
		}
		if c := s.client.Load(); c != nil {
			return c, nil
		}

		// Detached from the caller: one impatient caller must not fail the
		// connect for everyone waiting on it.
		dialCtx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
		defer cancel()

		c, err := s.dial(dialCtx)
		if err != nil {
			return nil, err
		}
		s.client.Store(c)

		// Close ran while the dial was in flight and could not see c.
		if s.closed.Load() {
			if s.client.CompareAndSwap(c, nil) {
				_ = c.Close()
			}
			return nil, ErrStoreClosed
		}
		s.logger.Info("connected to redis cache")
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*redis.Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get retrieves a value from redis. Any failure is reported as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.breaker.Execute(func() (interface{}, error) {
		client, err := s.conn(ctx)
		if err != nil {
			return nil, err
		}

		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		val, err := client.Get(opCtx, s.keyPrefix+key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		s.logFailure("get", key, err)
		return "", false
	}

	val, ok := v.(string)
	return val, ok
}

// Set stores a value in redis with the given TTL. Failures are logged and
// dropped.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		client, err := s.conn(ctx)
		if err != nil {
			return nil, err
		}

		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		return nil, client.Set(opCtx, s.keyPrefix+key, value, effectiveTTL(ttl)).Err()
	})
	if err != nil {
		s.logFailure("set", key, err)
	}
}

func (s *RedisStore) logFailure(op, key string, err error) {
	if errors.Is(err, ErrStoreClosed) {
		return
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Debug("cache skipped, circuit open", zap.String("op", op), zap.String("key", key))
		return
	}
	s.logger.Warn("cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

// Ping verifies the store is reachable, connecting if needed.
func (s *RedisStore) Ping(ctx context.Context) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Entries calls fn for every key matching the glob pattern match (relative
// to the key prefix). Errors are returned, not swallowed.
func (s *RedisStore) Entries(ctx context.Context, match string, fn func(Entry) error) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}

	iter := client.Scan(ctx, 0, s.keyPrefix+match, 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()

		val, err := client.Get(ctx, fullKey).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", fullKey, err)
		}

		ttl, err := client.TTL(ctx, fullKey).Result()
		if err != nil {
			return fmt.Errorf("reading ttl of %s: %w", fullKey, err)
		}
		if ttl < 0 {
			ttl = 0
		}

		if err := fn(Entry{Key: strings.TrimPrefix(fullKey, s.keyPrefix), Value: val, TTL: ttl}); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the redis connection if one was established. Later
// operations miss without connecting.
func (s *RedisStore) Close() error {
	s.closed.Store(true)
	if c := s.client.Swap(nil); c != nil {
		return c.Close()
	}
	return nil
}

var (
	_ Store      = (*RedisStore)(nil)
	_ Enumerable = (*RedisStore)(nil)
)

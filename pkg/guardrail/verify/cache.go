package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores verdicts by capability and evidence hash.
type Cache interface {
	// Get returns the cached verdict. The boolean is false on a miss.
	Get(ctx context.Context, key string) (Verdict, bool, error)

	// Set stores a verdict for ttl.
	Set(ctx context.Context, key string, verdict Verdict, ttl time.Duration) error
}

// CacheObserver is told about cache hits and misses. *metrics.Collector implements it.
type CacheObserver interface {
	RecordCacheHit(capability string)
	RecordCacheMiss(capability string)
}

type nopObserver struct{}

func (nopObserver) RecordCacheHit(string)  {}
func (nopObserver) RecordCacheMiss(string) {}

// CachingVerifier answers repeated evidence from a cache and only calls the wrapped
// verifier on a miss. Cache failures are logged and treated as misses; verification
// errors are never cached.
type CachingVerifier struct {
	next       Verifier
	cache      Cache
	capability string
	ttl        time.Duration
	logger     *slog.Logger
	observer   CacheObserver
}

// NewCachingVerifier wraps next with cache. The capability name namespaces the keys.
func NewCachingVerifier(capability string, next Verifier, cache Cache, ttl time.Duration, logger *slog.Logger) *CachingVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingVerifier{
		next:       next,
		cache:      cache,
		capability: capability,
		ttl:        ttl,
		logger:     logger,
		observer:   nopObserver{},
	}
}

// WithObserver sets the hit/miss observer and returns c.
func (c *CachingVerifier) WithObserver(o CacheObserver) *CachingVerifier {
	if o != nil {
		c.observer = o
	}
	return c
}

// Verify implements Verifier.
func (c *CachingVerifier) Verify(ctx context.Context, evidenceHash string) (Verdict, error) {
	key := c.capability + ":" + evidenceHash

	verdict, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Verdict cache read failed",
			"capability", c.capability,
			"error", err,
		)
	} else if ok {
		c.observer.RecordCacheHit(c.capability)
		return verdict, nil
	}
	c.observer.RecordCacheMiss(c.capability)

	verdict, err = c.next.Verify(ctx, evidenceHash)
	if err != nil {
		return Verdict{}, err
	}

	if err := c.cache.Set(ctx, key, verdict, c.ttl); err != nil {
		c.logger.Warn("Verdict cache write failed",
			"capability", c.capability,
			"error", err,
		)
	}

	return verdict, nil
}

// RedisCache is a Cache backed by Redis string keys holding JSON verdicts.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a Redis-backed cache. Keys are stored as prefix + key.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (Verdict, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Verdict{}, false, nil
	}
	if err != nil {
		return Verdict{}, false, fmt.Errorf("redis get: %w", err)
	}

	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Verdict{}, false, fmt.Errorf("decode cached verdict: %w", err)
	}
	return verdict, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, verdict Verdict, ttl time.Duration) error {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RedisOptions configures ConnectRedis.
type RedisOptions struct {
	Address    string
	Password   string
	DB         int
	MaxRetries int
}

// ConnectRedis creates a client and pings it, retrying with exponential backoff.
func ConnectRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr:            opts.Address,
		Password:        opts.Password,
		DB:              opts.DB,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})

	var err error
	for i := range maxRetries {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			logger.Info("Waiting before Redis retry", "backoff", backoff)
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = client.Ping(ctx).Err()
		if err == nil {
			logger.Info("Redis connected", "address", opts.Address, "attempts", i+1)
			return client, nil
		}

		logger.Warn("Redis ping failed", "attempt", i+1, "max_retries", maxRetries, "error", err)
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

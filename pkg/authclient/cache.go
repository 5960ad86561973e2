package authclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gurulk/platform/pkg/observability"
)

const defaultCacheTTL = 30 * time.Second

// validationCache caches positive validation results for a short window.
// L1 is an in-process LRU; L2 is an optional shared Redis tier. Negative
// results are never cached, so a revoked-by-expiry token is only ever
// accepted for at most the TTL past its last successful validation.
type validationCache struct {
	l1      *lru.Cache[string, cachedResult]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

type cachedResult struct {
	result    ValidationResult
	expiresAt time.Time
}

// NewValidationCache creates a cache with the given L1 size and TTL.
// redisClient may be nil to run L1-only; metrics may be nil.
func NewValidationCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) (*validationCache, error) {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	l1, err := lru.New[string, cachedResult](size)
	if err != nil {
		return nil, err
	}

	return &validationCache{
		l1:      l1,
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}, nil
}

// cacheKey hashes the token so raw credentials never sit in the cache or
// travel to Redis as keys.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "gurulk:tokencache:" + hex.EncodeToString(sum[:])
}

// Get returns a cached positive result for the token, if any.
func (c *validationCache) Get(ctx context.Context, token string) (*ValidationResult, bool) {
	key := cacheKey(token)

	if entry, ok := c.l1.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.countHit("l1")
			result := entry.result
			return &result, true
		}
		c.l1.Remove(key)
	}
	c.countMiss("l1")

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and transport errors both fall through to the
		// remote call
		c.countMiss("l2")
		return nil, false
	}

	var result ValidationResult
	if err := json.Unmarshal(data, &result); err != nil || !result.Valid {
		c.countMiss("l2")
		return nil, false
	}

	c.countHit("l2")
	c.l1.Add(key, cachedResult{result: result, expiresAt: time.Now().Add(c.ttl)})
	return &result, true
}

// Put caches a positive result in both tiers. Redis write failures are
// ignored; the L1 entry still serves this process.
func (c *validationCache) Put(ctx context.Context, token string, result *ValidationResult) {
	if result == nil || !result.Valid {
		return
	}

	key := cacheKey(token)
	c.l1.Add(key, cachedResult{result: *result, expiresAt: time.Now().Add(c.ttl)})

	if c.redis == nil {
		return
	}
	if data, err := json.Marshal(result); err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
}

func (c *validationCache) countHit(tier string) {
	if c.metrics != nil {
		c.metrics.AuthCacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *validationCache) countMiss(tier string) {
	if c.metrics != nil {
		c.metrics.AuthCacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

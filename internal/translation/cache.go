package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

// Cache stores translations by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CacheKey derives the cache key for a translation request.
func CacheKey(text, sourceLanguage, targetLanguage string) string {
	sum := sha256.Sum256([]byte(sourceLanguage + "\x00" + targetLanguage + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// RedisCache keeps translations in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "pagetranslate:tr:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedTranslator consults the cache before the wrapped translator. Cache
// failures are logged and otherwise ignored.
type CachedTranslator struct {
	next   Translator
	cache  Cache
	logger *logging.Logger
}

var _ Translator = (*CachedTranslator)(nil)

// NewCachedTranslator wraps next with cache.
func NewCachedTranslator(next Translator, cache Cache) *CachedTranslator {
	return &CachedTranslator{
		next:   next,
		cache:  cache,
		logger: logging.NewLogger("TranslationCache"),
	}
}

func (t *CachedTranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	key := CacheKey(text, sourceLanguage, targetLanguage)

	cached, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Cache lookup failed", "error", err)
	} else if ok {
		return cached, nil
	}

	translated, err := t.next.Translate(ctx, text, sourceLanguage, targetLanguage)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, key, translated); err != nil {
		t.logger.Warn("Cache store failed", "error", err)
	}
	return translated, nil
}

package enrich

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayusman/handcard/internal/annotation"
)

// Cache stores enrichment results by request fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (annotation.Content, bool, error)
	Set(ctx context.Context, key string, c annotation.Content) error
}

// CacheKey fingerprints a prompt and image.
func CacheKey(prompt string, jpeg []byte) string {
	hash := md5.New()
	hash.Write([]byte(prompt))
	hash.Write(jpeg)
	return hex.EncodeToString(hash.Sum(nil))
}

// RedisCache keeps rendered results in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr. The connection is established lazily.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns a cached result. A miss is reported as ok=false with no error.
func (c *RedisCache) Get(ctx context.Context, key string) (annotation.Content, bool, error) {
	data, err := c.client.Get(ctx, "enrich:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return annotation.Content{}, false, nil
	}
	if err != nil {
		return annotation.Content{}, false, err
	}

	var content annotation.Content
	if err := json.Unmarshal(data, &content); err != nil {
		return annotation.Content{}, false, err
	}
	return content, true, nil
}

// Set stores a rendered result. Failures are never cached.
func (c *RedisCache) Set(ctx context.Context, key string, content annotation.Content) error {
	if content.Kind != annotation.KindRendered {
		return nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "enrich:"+key, data, c.ttl).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

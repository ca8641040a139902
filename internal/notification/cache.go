package notification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CountCache holds the admin unread badge count between writes. Counts
// are stored against a version; Invalidate moves to a new version so a
// count computed before a write can never be served after it.
type CountCache interface {
	// Get returns the cached count and the current version. ok is false
	// on a miss; version is negative when the cache is unreachable.
	Get(ctx context.Context) (n, version int64, ok bool)
	Set(ctx context.Context, version, n int64)
	Invalidate(ctx context.Context)
}

// RedisCountCache keeps a version counter and one expiring count key per
// version. Cache errors are logged and otherwise ignored; the database
// stays the source of truth.
type RedisCountCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCountCache builds the cache. ttl <= 0 defaults to 30s.
func NewRedisCountCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCountCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCountCache{client: client, prefix: "notifications:unread:admin", ttl: ttl, logger: logger}
}

func (c *RedisCountCache) versionKey() string { return c.prefix + ":version" }

func (c *RedisCountCache) countKey(version int64) string {
	return c.prefix + ":v" + strconv.FormatInt(version, 10)
}

func (c *RedisCountCache) Get(ctx context.Context) (int64, int64, bool) {
	version, err := c.client.Get(ctx, c.versionKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "unread count cache read failed", "error", err)
		return 0, -1, false
	}
	n, err := c.client.Get(ctx, c.countKey(version)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "unread count cache read failed", "error", err)
		}
		return 0, version, false
	}
	return n, version, true
}

func (c *RedisCountCache) Set(ctx context.Context, version, n int64) {
	if version < 0 {
		return
	}
	if err := c.client.Set(ctx, c.countKey(version), n, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread count cache write failed", "error", err)
	}
}

func (c *RedisCountCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.versionKey()).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread count cache invalidate failed", "error", err)
	}
}

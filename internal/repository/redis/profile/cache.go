package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"
	"family-tree-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "family-tree:profile:"
	opTimeout        = 500 * time.Millisecond
	scanBatch        = 200
)

// RedisProfileCache shares cached profiles between API instances. Redis
// failures degrade to cache misses and are logged.
type RedisProfileCache struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

func NewRedisProfileCache(client *redis.Client, prefix string, log logger.Logger) *RedisProfileCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisProfileCache{client: client, prefix: prefix, log: log}
}

func (c *RedisProfileCache) GetByID(id string) (*profiledomain.Profile, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache: redis get failed", "err", err, "profile_id", id)
		return nil, false
	}

	var profile profiledomain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		c.log.Warn("cache: decode cached profile failed", "err", err, "profile_id", id)
		return nil, false
	}
	return &profile, true
}

func (c *RedisProfileCache) SetByID(id string, profile *profiledomain.Profile, ttl time.Duration) {
	if profile == nil || ttl <= 0 {
		c.DeleteByID(id)
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		c.log.Warn("cache: encode profile failed", "err", err, "profile_id", id)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.key(id), data, ttl).Err(); err != nil {
		c.log.Warn("cache: redis set failed", "err", err, "profile_id", id)
	}
}

func (c *RedisProfileCache) DeleteByID(ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Error("cache: redis delete failed, entries may be stale until ttl", "err", err, "profile_ids", ids)
	}
}

func (c *RedisProfileCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*opTimeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache: redis scan failed", "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache: redis clear failed", "err", err)
	}
}

func (c *RedisProfileCache) key(id string) string {
	return c.prefix + id
}

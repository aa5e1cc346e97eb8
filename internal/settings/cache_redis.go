package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
)

const defaultCacheTTL = 30 * time.Second

// RedisCache stores rules as JSON under a per-tenant key. The TTL bounds
// staleness when another instance writes without reaching this cache.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "sharereg:settings:"}
}

func (c *RedisCache) key(tenantID id.TenantID) string {
	return c.prefix + tenantID.String()
}

func (c *RedisCache) Get(ctx context.Context, tenantID id.TenantID) (voting.Rules, bool, error) {
	raw, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return voting.Rules{}, false, nil
		}
		return voting.Rules{}, false, fmt.Errorf("redis get settings: %w", err)
	}
	var rules voting.Rules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return voting.Rules{}, false, fmt.Errorf("decode cached settings: %w", err)
	}
	return rules, true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID id.TenantID, rules voting.Rules) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := c.client.Set(ctx, c.key(tenantID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set settings: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID id.TenantID) error {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del settings: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/enrolment-backend/internal/config"
)

// GatewayTokenCache shares the payment processor bearer token across instances.
type GatewayTokenCache struct {
	rdb *redis.Client
	key string
}

// NewGatewayTokenCache creates a token cache scoped to one client id.
func NewGatewayTokenCache(rdb *redis.Client, clientID string) *GatewayTokenCache {
	return &GatewayTokenCache{rdb: rdb, key: config.CacheKey.GatewayAccessTokenKey(clientID)}
}

func (c *GatewayTokenCache) Get(ctx context.Context) (string, error) {
	token, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (c *GatewayTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key, token, ttl).Err()
}

func (c *GatewayTokenCache) Delete(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}

//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"docverify/internal/platform/config"
	platformredis "docverify/internal/platform/redis"
)

const redisImage = "redis:7-alpine"

// Redis is a disposable Redis for policy store tests. The client is built by
// the server's own constructor, so pool and timeout settings match production.
type Redis struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *redis.Client
}

// StartRedis runs a Redis container for the lifetime of the test.
func StartRedis(t *testing.T) *Redis {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.New(ctx, config.RedisConfig{
		URL:         url,
		PoolSize:    4,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &Redis{Container: container, URL: url, Client: client.Client}
}

// Flush drops every key so suite tests start from an empty store.
func (r *Redis) Flush(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}

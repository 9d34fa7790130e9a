package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gradtrust/portal/internal/domain/credential"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return client
}

func TestRedis_SaveFindDelete(t *testing.T) {
	client := setupRedis(t)
	c := NewRedis(client, time.Minute)
	ctx := context.Background()

	addr := "0xCacheTest"
	t.Cleanup(func() { _ = c.Delete(ctx, addr) })

	if _, err := c.Find(ctx, addr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss on empty key, got %v", err)
	}

	in := []credential.Credential{{Hash: "0x01", Issuer: "0xi", IssuedAt: 1700000000}}
	if err := c.Save(ctx, addr, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := c.Find(ctx, "0xcachetest")
	if err != nil || len(got) != 1 || got[0].IssuedAt != 1700000000 {
		t.Fatalf("unexpected find result %v %v", got, err)
	}

	if err := c.Delete(ctx, addr); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Find(ctx, addr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gradtrust/portal/internal/domain/credential"
)

const redisCredentialsKeyPrefix = "gradtrust:credentials:"

// Redis shares the credential cache between portal instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Find(ctx context.Context, address string) ([]credential.Credential, error) {
	data, err := c.client.Get(ctx, credentialsKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find credentials cache: %w", err)
	}

	var creds []credential.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials cache: %w", err)
	}
	return creds, nil
}

func (c *Redis) Save(ctx context.Context, address string, creds []credential.Credential) error {
	if creds == nil {
		creds = []credential.Credential{}
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials cache: %w", err)
	}

	if err := c.client.Set(ctx, credentialsKey(address), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save credentials cache: %w", err)
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, address string) error {
	if err := c.client.Del(ctx, credentialsKey(address)).Err(); err != nil {
		return fmt.Errorf("delete credentials cache: %w", err)
	}
	return nil
}

func credentialsKey(address string) string {
	return redisCredentialsKeyPrefix + normalize(address)
}

package rolestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"procurement-client/core/procurement"
)

const redisKeyPrefix = "procurement:"

// RedisStore shares the role across processes through Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and pings it.
func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStoreFromClient(client, key), nil
}

func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{client: client, key: redisKeyPrefix + key}
}

func (s *RedisStore) Load(ctx context.Context) (procurement.Role, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load role: %w", err)
	}
	return procurement.ParseRole(raw), true, nil
}

func (s *RedisStore) Save(ctx context.Context, role procurement.Role) error {
	if err := s.client.Set(ctx, s.key, role.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

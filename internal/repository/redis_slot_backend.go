package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlotBackend slot de persistance dans Redis, l'expiration est portée par le TTL de la clé
type RedisSlotBackend struct {
	client redis.Cmdable
}

// NewRedisSlotBackend crée un backend Redis
func NewRedisSlotBackend(client redis.Cmdable) *RedisSlotBackend {
	return &RedisSlotBackend{client: client}
}

// Get implémente SlotBackend
func (b *RedisSlotBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set implémente SlotBackend
func (b *RedisSlotBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implémente SlotBackend
func (b *RedisSlotBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping implémente SlotBackend
func (b *RedisSlotBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

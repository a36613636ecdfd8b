package repository

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisQuotaRepository is a fixed-window counter shared across
// instances. The key gets its TTL on the first increment of a window,
// so the window boundary is set by whoever hits it first.
type RedisQuotaRepository struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisQuotaRepository(client *redis.Client) *RedisQuotaRepository {
	return &RedisQuotaRepository{client: client}
}

func (r *RedisQuotaRepository) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if r.client == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}
	redisKey := fmt.Sprintf("booking_quota:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment quota counter: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(limit), remaining, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mammo-vision/internal/domain/entity"
	"mammo-vision/internal/domain/port"
)

const redisKeyPrefix = "mammo:result:"

// RedisResultCache кэш результатов в Redis, значения хранятся в JSON
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResultCache подключается к Redis по URL вида redis://host:6379/0
func NewRedisResultCache(ctx context.Context, url string, ttl time.Duration) (*RedisResultCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisResultCache{client: client, ttl: ttl}, nil
}

// Get читает результат по ключу
func (c *RedisResultCache) Get(ctx context.Context, key string) (*entity.PredictionResult, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result entity.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, true, nil
}

// Put записывает результат с истечением через ttl
func (c *RedisResultCache) Put(ctx context.Context, key string, result *entity.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

// Проверка реализации интерфейса
var _ port.ResultCache = (*RedisResultCache)(nil)

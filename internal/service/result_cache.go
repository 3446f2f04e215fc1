package service

import (
	"context"
	"encoding/json"
	"time"

	"teps_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const resultCacheKeyPrefix = "teps:result:"

// CachedResult 缓存成绩时一并保存考生 id，命中缓存时仍可校验归属
type CachedResult struct {
	UserID uint              `json:"userId"`
	Result *model.ExamResult `json:"result"`
}

// ResultCache 已完成考试的成绩缓存，未命中时返回 (nil, nil)
type ResultCache interface {
	Get(ctx context.Context, attemptID string) (*CachedResult, error)
	Set(ctx context.Context, attemptID string, entry *CachedResult, ttl time.Duration) error
}

type RedisResultCache struct {
	Redis *redis.Client
}

func NewRedisResultCache(rdb *redis.Client) *RedisResultCache {
	return &RedisResultCache{Redis: rdb}
}

func (c *RedisResultCache) Get(ctx context.Context, attemptID string) (*CachedResult, error) {
	val, err := c.Redis.Get(ctx, resultCacheKeyPrefix+attemptID).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var entry CachedResult
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *RedisResultCache) Set(ctx context.Context, attemptID string, entry *CachedResult, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, resultCacheKeyPrefix+attemptID, data, ttl).Err()
}

// noopResultCache 未配置 Redis 时使用
type noopResultCache struct{}

func (noopResultCache) Get(ctx context.Context, attemptID string) (*CachedResult, error) {
	return nil, nil
}

func (noopResultCache) Set(ctx context.Context, attemptID string, entry *CachedResult, ttl time.Duration) error {
	return nil
}

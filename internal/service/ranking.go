package service

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const scoreRankKeyPrefix = "teps:exam:scores:"

// ScoreRanker 记录一次成绩并返回其在同一试卷所有成绩中的百分位
// Forget 撤销一次 Rank，成绩未能保存时调用
type ScoreRanker interface {
	Rank(ctx context.Context, examConfigID uint, attemptID string, totalScore int) (float64, error)
	Forget(ctx context.Context, examConfigID uint, attemptID string) error
}

// StaticRanker 没有排名数据时使用配置中的默认百分位
type StaticRanker struct {
	settings *ExamSettings
}

func NewStaticRanker(settings *ExamSettings) *StaticRanker {
	return &StaticRanker{settings: settings}
}

func (r *StaticRanker) Rank(ctx context.Context, examConfigID uint, attemptID string, totalScore int) (float64, error) {
	return r.settings.Get().DefaultPercentile, nil
}

func (r *StaticRanker) Forget(ctx context.Context, examConfigID uint, attemptID string) error {
	return nil
}

func scoreRankKey(examConfigID uint) string {
	return fmt.Sprintf("%s%d", scoreRankKeyPrefix, examConfigID)
}

// RedisScoreRanker 每份试卷一个有序集合，成员为 attempt id，分值为总分
type RedisScoreRanker struct {
	Redis    *redis.Client
	settings *ExamSettings
}

func NewRedisScoreRanker(rdb *redis.Client, settings *ExamSettings) *RedisScoreRanker {
	return &RedisScoreRanker{Redis: rdb, settings: settings}
}

// Rank 百分位 = (低于该分的其他成绩数 + 同分其他成绩数/2) / 其他成绩总数 × 100。
// 只有自己一份成绩时返回默认百分位。
func (r *RedisScoreRanker) Rank(ctx context.Context, examConfigID uint, attemptID string, totalScore int) (float64, error) {
	key := scoreRankKey(examConfigID)
	score := float64(totalScore)

	if err := r.Redis.ZAdd(ctx, key, &redis.Z{Score: score, Member: attemptID}).Err(); err != nil {
		return 0, err
	}

	total, err := r.Redis.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	others := total - 1
	if others <= 0 {
		return r.settings.Get().DefaultPercentile, nil
	}

	s := strconv.Itoa(totalScore)
	below, err := r.Redis.ZCount(ctx, key, "-inf", "("+s).Result()
	if err != nil {
		return 0, err
	}
	equal, err := r.Redis.ZCount(ctx, key, s, s).Result()
	if err != nil {
		return 0, err
	}
	// equal 包含自己
	p := (float64(below) + float64(equal-1)/2) / float64(others) * 100
	return math.Round(p*10) / 10, nil
}

func (r *RedisScoreRanker) Forget(ctx context.Context, examConfigID uint, attemptID string) error {
	return r.Redis.ZRem(ctx, scoreRankKey(examConfigID), attemptID).Err()
}

package service

import (
	"context"
	"testing"

	"teps_backend/internal/config"
	"teps_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisScoreRanker(t *testing.T) {
	rdb := newRedis(t)
	ranker := NewRedisScoreRanker(rdb, NewExamSettings(config.DefaultExamConfig()))
	ctx := context.Background()

	// 只有一份成绩时没有可比较的对象
	p, err := ranker.Rank(ctx, 1, "a1", 100)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	p, err = ranker.Rank(ctx, 1, "a2", 200)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	p, err = ranker.Rank(ctx, 1, "a3", 150)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	// 同分的其他成绩按一半计入
	p, err = ranker.Rank(ctx, 1, "a4", 150)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	p, err = ranker.Rank(ctx, 1, "a5", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	// 不同试卷互不影响
	p, err = ranker.Rank(ctx, 2, "b1", 600)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)
}

func TestRedisScoreRanker_ResubmitSameAttempt(t *testing.T) {
	rdb := newRedis(t)
	ranker := NewRedisScoreRanker(rdb, NewExamSettings(config.DefaultExamConfig()))
	ctx := context.Background()

	_, err := ranker.Rank(ctx, 1, "a1", 100)
	require.NoError(t, err)
	_, err = ranker.Rank(ctx, 1, "a1", 100)
	require.NoError(t, err)

	n, err := rdb.ZCard(ctx, "teps:exam:scores:1").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisScoreRanker_Forget(t *testing.T) {
	rdb := newRedis(t)
	ranker := NewRedisScoreRanker(rdb, NewExamSettings(config.DefaultExamConfig()))
	ctx := context.Background()

	_, err := ranker.Rank(ctx, 1, "a1", 100)
	require.NoError(t, err)
	_, err = ranker.Rank(ctx, 1, "a2", 300)
	require.NoError(t, err)
	require.NoError(t, ranker.Forget(ctx, 1, "a2"))

	n, err := rdb.ZCard(ctx, "teps:exam:scores:1").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// 不存在的成员不报错
	require.NoError(t, ranker.Forget(ctx, 1, "missing"))
}

func TestStaticRanker_FollowsReload(t *testing.T) {
	settings := NewExamSettings(config.DefaultExamConfig())
	ranker := NewStaticRanker(settings)

	p, err := ranker.Rank(context.Background(), 1, "x", 600)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	cfg := config.DefaultExamConfig()
	cfg.DefaultPercentile = 65
	require.NoError(t, settings.Update(cfg))

	p, err = ranker.Rank(context.Background(), 1, "x", 600)
	require.NoError(t, err)
	assert.Equal(t, 65.0, p)
	assert.NoError(t, ranker.Forget(context.Background(), 1, "x"))
}

func TestRedisResultCache(t *testing.T) {
	rdb := newRedis(t)
	cache := NewRedisResultCache(rdb)
	ctx := context.Background()

	got, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &CachedResult{
		UserID: 7,
		Result: &model.ExamResult{
			TotalScore:     250,
			MaxScore:       600,
			EstimatedLevel: "B1-B2 (Intermediate)",
			Weaknesses:     []model.Section{model.SectionReading},
		},
	}
	require.NoError(t, cache.Set(ctx, "a1", entry, config.DefaultExamConfig().ResultCacheTTL()))

	got, err = cache.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint(7), got.UserID)
	assert.Equal(t, 250, got.Result.TotalScore)
	assert.Equal(t, []model.Section{model.SectionReading}, got.Result.Weaknesses)

	ttl, err := rdb.TTL(ctx, "teps:result:a1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)
}

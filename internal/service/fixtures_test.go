package service

import (
	"math/rand"
	"testing"

	"teps_backend/internal/config"
	"teps_backend/internal/repository"
	"teps_backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	redis     *redis.Client
	settings  *ExamSettings
	questions *QuestionService
	configs   *ExamConfigService
	exams     *ExamService
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.PrepareDB(t)
	rdb := newRedis(t)
	settings := NewExamSettings(config.DefaultExamConfig())

	questionRepo := repository.NewQuestionRepository(db)
	storage := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}}
	questions := NewQuestionService(questionRepo, storage, settings)
	selector := NewQuestionSelector(questionRepo, rand.New(rand.NewSource(42)))
	configRepo := repository.NewExamConfigRepository(db)

	exams := NewExamService(
		repository.NewExamAttemptRepository(db),
		configRepo,
		questions,
		selector,
		NewScoringService(settings),
		NewRedisScoreRanker(rdb, settings),
		NewRedisResultCache(rdb),
		settings,
	)

	return &testEnv{
		db:        db,
		redis:     rdb,
		settings:  settings,
		questions: questions,
		configs:   NewExamConfigService(configRepo),
		exams:     exams,
	}
}

func newScoring(t *testing.T) *ScoringService {
	t.Helper()
	return NewScoringService(NewExamSettings(config.DefaultExamConfig()))
}

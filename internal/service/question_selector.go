package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/repository"
	"teps_backend/internal/util"
)

// poolOversampling 候选池大小为题量的倍数
const poolOversampling = 2

// QuestionSelector 为新考试抽题：每个部分取 questionCount*2 道已审核题目作为候选池，
// 打乱后取前 questionCount 道
type QuestionSelector struct {
	repo *repository.QuestionRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionSelector(repo *repository.QuestionRepository, rnd *rand.Rand) *QuestionSelector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QuestionSelector{repo: repo, rnd: rnd}
}

// SelectQuestions 按部分顺序返回选中的题目 id 以及每道题所属的部分。候选池不足时整池使用，
// 一道题都选不出时返回 ErrNoQuestionsAvailable。
func (s *QuestionSelector) SelectQuestions(ctx context.Context, exam *model.ExamConfig) ([]uint, []model.Section, error) {
	ids := make([]uint, 0, exam.TotalQuestions())
	sections := make([]model.Section, 0, exam.TotalQuestions())
	for _, sc := range exam.Sections {
		picked, err := s.selectSection(ctx, sc, exam.ShuffleQuestions)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, picked...)
		for range picked {
			sections = append(sections, sc.Section)
		}
	}
	if len(ids) == 0 {
		return nil, nil, util.ErrNoQuestionsAvailable
	}
	return ids, sections, nil
}

func (s *QuestionSelector) selectSection(ctx context.Context, sc model.SectionConfig, shuffle bool) ([]uint, error) {
	if sc.QuestionCount <= 0 {
		return nil, nil
	}

	available, err := s.repo.CountApprovedBySection(ctx, sc.Section)
	if err != nil {
		return nil, err
	}
	poolSize := sc.QuestionCount * poolOversampling

	// 题库大于候选池时随机选一个起点，避免总是抽到最早录入的题目
	offset := 0
	if int(available) > poolSize {
		offset = s.intn(int(available) - poolSize + 1)
	}

	pool, err := s.repo.FindApprovedBySection(ctx, sc.Section, offset, poolSize)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}

	s.mu.Lock()
	s.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	s.mu.Unlock()

	if len(ids) > sc.QuestionCount {
		ids = ids[:sc.QuestionCount]
	}
	if !shuffle {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return ids, nil
}

func (s *QuestionSelector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/repository"
	"teps_backend/internal/util"
	"teps_backend/pkg/logger"
	"teps_backend/pkg/monitoring"
	"teps_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ExamService 考试流程：not_started → in_progress → completed，超时进入 expired
type ExamService struct {
	Attempts  *repository.ExamAttemptRepository
	Configs   *repository.ExamConfigRepository
	Questions *QuestionService
	Selector  *QuestionSelector
	Scoring   *ScoringService
	Ranker    ScoreRanker
	Cache     ResultCache

	settings *ExamSettings
	now      func() time.Time
}

func NewExamService(
	attempts *repository.ExamAttemptRepository,
	configs *repository.ExamConfigRepository,
	questions *QuestionService,
	selector *QuestionSelector,
	scoring *ScoringService,
	ranker ScoreRanker,
	cache ResultCache,
	settings *ExamSettings,
) *ExamService {
	if ranker == nil {
		ranker = NewStaticRanker(settings)
	}
	if cache == nil {
		cache = noopResultCache{}
	}
	return &ExamService{
		Attempts:  attempts,
		Configs:   configs,
		Questions: questions,
		Selector:  selector,
		Scoring:   scoring,
		Ranker:    ranker,
		Cache:     cache,
		settings:  settings,
		now:       time.Now,
	}
}

type AnswerRequest struct {
	QuestionID     uint   `json:"questionId" binding:"required"`
	SelectedAnswer string `json:"selectedAnswer" binding:"required,max=255"`
	TimeSpent      int    `json:"timeSpent" binding:"min=0"` // 秒
}

type AnswerResult struct {
	AttemptID            string `json:"attemptId"`
	QuestionID           uint   `json:"questionId"`
	IsCorrect            bool   `json:"isCorrect"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	TotalQuestions       int    `json:"totalQuestions"`
}

// CreateAttempt 为已发布的试卷抽题并创建考试，用户水平取最近一次已完成考试的评估等级
func (s *ExamService) CreateAttempt(ctx context.Context, userID, examConfigID uint) (attempt *model.ExamAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "ExamService.CreateAttempt",
		attribute.Int64("exam.config_id", int64(examConfigID)))
	defer func() { tracing.EndSpan(span, err) }()

	exam, err := s.Configs.FindByID(ctx, examConfigID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublished {
		return nil, util.ErrExamConfigNotFound
	}

	ids, sections, err := s.Selector.SelectQuestions(ctx, exam)
	if err != nil {
		return nil, err
	}

	level, err := s.Attempts.LatestCompletedLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	if level == "" {
		level = model.UnratedLevel
	}

	attempt = &model.ExamAttempt{
		UserID:           userID,
		ExamConfigID:     exam.ID,
		Status:           model.AttemptNotStarted,
		QuestionIDs:      ids,
		QuestionSections: sections,
		UserLevel:        level,
		ExpiresAt:        s.now().Add(s.settings.Get().AttemptTTL()),
	}
	if err = s.Attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	monitoring.AttemptTransitions.WithLabelValues(string(model.AttemptNotStarted)).Inc()
	logger.Log.Info("exam attempt created",
		zap.String("attemptID", attempt.ID),
		zap.Uint("userID", userID),
		zap.Uint("examConfigID", exam.ID),
		zap.Int("questions", len(ids)),
		zap.String("userLevel", level))
	return attempt, nil
}

// StartAttempt 只能从 not_started 开始
func (s *ExamService) StartAttempt(ctx context.Context, userID uint, attemptID string) (*model.ExamAttempt, error) {
	a, err := s.loadOwned(ctx, userID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, a) {
		return nil, util.ErrAttemptExpired
	}
	if a.Status != model.AttemptNotStarted {
		return nil, &util.StateError{Current: string(a.Status), Action: "start"}
	}

	now := s.now()
	if err := s.Attempts.UpdateState(ctx, a, model.AttemptNotStarted, map[string]interface{}{
		"status":     model.AttemptInProgress,
		"started_at": now,
	}); err != nil {
		return nil, err
	}
	a.Status = model.AttemptInProgress
	a.StartedAt = &now

	monitoring.AttemptTransitions.WithLabelValues(string(model.AttemptInProgress)).Inc()
	logger.Log.Info("exam attempt started", zap.String("attemptID", a.ID), zap.Uint("userID", userID))
	return a, nil
}

// SubmitAnswer 记录一道题的作答并推进进度。题目统计的更新失败只记日志，不影响作答结果。
func (s *ExamService) SubmitAnswer(ctx context.Context, userID uint, attemptID string, req AnswerRequest) (result *AnswerResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ExamService.SubmitAnswer",
		attribute.String("attempt.id", attemptID),
		attribute.Int64("question.id", int64(req.QuestionID)))
	defer func() { tracing.EndSpan(span, err) }()

	if req.TimeSpent < 0 {
		return nil, util.NewValidationError("timeSpent", "must not be negative")
	}
	if strings.TrimSpace(req.SelectedAnswer) == "" {
		return nil, util.NewValidationError("selectedAnswer", "is required")
	}

	a, err := s.loadOwned(ctx, userID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, a) {
		return nil, util.ErrAttemptExpired
	}
	if a.Status != model.AttemptInProgress {
		return nil, &util.StateError{Current: string(a.Status), Action: "submit answer to"}
	}
	if !a.ContainsQuestion(req.QuestionID) {
		return nil, util.ErrQuestionNotInAttempt
	}

	q, err := s.Questions.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	// 按抽题时的部分计分，题目在考试期间被移动到其他部分不影响本次考试
	section, ok := a.SectionOf(q.ID)
	if !ok {
		section = q.Section
	}

	isCorrect := q.CheckAnswer(req.SelectedAnswer)
	ans := &model.ExamAttemptAnswer{
		AttemptID:      a.ID,
		QuestionID:     q.ID,
		Section:        section,
		SelectedAnswer: strings.TrimSpace(req.SelectedAnswer),
		IsCorrect:      isCorrect,
		TimeSpent:      req.TimeSpent,
		Sequence:       a.CurrentQuestionIndex + 1,
	}
	if err = s.Attempts.SaveAnswer(ctx, a, ans); err != nil {
		return nil, err
	}

	monitoring.AnswersSubmitted.WithLabelValues(string(section), strconv.FormatBool(isCorrect)).Inc()

	if statErr := s.Questions.RecordAnswer(ctx, q.ID, isCorrect, req.TimeSpent, a.UserLevel); statErr != nil {
		logger.Log.Warn("update question statistics failed",
			zap.Uint("questionID", q.ID),
			zap.String("attemptID", a.ID),
			zap.Error(statErr))
	}

	return &AnswerResult{
		AttemptID:            a.ID,
		QuestionID:           q.ID,
		IsCorrect:            isCorrect,
		CurrentQuestionIndex: a.CurrentQuestionIndex,
		TotalQuestions:       len(a.QuestionIDs),
	}, nil
}

// CompleteExam 计算并保存成绩，成绩只在这一次状态转换中写入
func (s *ExamService) CompleteExam(ctx context.Context, userID uint, attemptID string) (*model.ExamResult, error) {
	return s.complete(ctx, userID, attemptID, 0)
}

// SubmitTest 与 CompleteExam 相同，但要求考试属于指定试卷
func (s *ExamService) SubmitTest(ctx context.Context, userID, examConfigID uint, attemptID string) (*model.ExamResult, error) {
	return s.complete(ctx, userID, attemptID, examConfigID)
}

func (s *ExamService) complete(ctx context.Context, userID uint, attemptID string, examConfigID uint) (result *model.ExamResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ExamService.CompleteExam", attribute.String("attempt.id", attemptID))
	defer func() { tracing.EndSpan(span, err) }()

	a, err := s.loadOwned(ctx, userID, attemptID, true)
	if err != nil {
		return nil, err
	}
	if examConfigID != 0 && a.ExamConfigID != examConfigID {
		return nil, util.ErrAttemptNotFound
	}
	if s.expireIfDue(ctx, a) {
		return nil, util.ErrAttemptExpired
	}
	if a.Status != model.AttemptInProgress {
		return nil, &util.StateError{Current: string(a.Status), Action: "complete"}
	}

	exam, err := s.Configs.FindByID(ctx, a.ExamConfigID)
	if err != nil {
		return nil, err
	}

	result, err = s.Scoring.CalculateResult(exam.Sections, a.Answers)
	if err != nil {
		return nil, err
	}

	if p, rankErr := s.Ranker.Rank(ctx, a.ExamConfigID, a.ID, result.TotalScore); rankErr != nil {
		logger.Log.Warn("rank exam score failed, using default percentile",
			zap.String("attemptID", a.ID), zap.Error(rankErr))
	} else {
		result.Percentile = p
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	now := s.now()
	total := result.TotalScore
	if err = s.Attempts.UpdateState(ctx, a, model.AttemptInProgress, map[string]interface{}{
		"status":          model.AttemptCompleted,
		"completed_at":    now,
		"total_score":     total,
		"estimated_level": result.EstimatedLevel,
		"result":          datatypes.JSON(data),
	}); err != nil {
		// 成绩没有保存，排名中不能留下这次成绩
		if forgetErr := s.Ranker.Forget(ctx, a.ExamConfigID, a.ID); forgetErr != nil {
			logger.Log.Error("remove unsaved exam score from ranking failed",
				zap.String("attemptID", a.ID), zap.Error(forgetErr))
		}
		return nil, err
	}
	a.Status = model.AttemptCompleted
	a.CompletedAt = &now
	a.TotalScore = &total
	a.EstimatedLevel = result.EstimatedLevel

	monitoring.AttemptTransitions.WithLabelValues(string(model.AttemptCompleted)).Inc()
	monitoring.ExamScores.Observe(float64(total))

	if cacheErr := s.Cache.Set(ctx, a.ID, &CachedResult{UserID: a.UserID, Result: result}, s.settings.Get().ResultCacheTTL()); cacheErr != nil {
		logger.Log.Warn("cache exam result failed", zap.String("attemptID", a.ID), zap.Error(cacheErr))
	}

	logger.Log.Info("exam attempt completed",
		zap.String("attemptID", a.ID),
		zap.Uint("userID", userID),
		zap.Int("totalScore", total),
		zap.String("estimatedLevel", result.EstimatedLevel))
	return result, nil
}

// GetAttempt 读取时顺带处理超时，过期的考试以 expired 状态返回
func (s *ExamService) GetAttempt(ctx context.Context, userID uint, attemptID string) (*model.ExamAttempt, error) {
	a, err := s.loadOwned(ctx, userID, attemptID, true)
	if err != nil {
		return nil, err
	}
	s.expireIfDue(ctx, a)
	return a, nil
}

// GetResult 优先读缓存，未命中时从考试记录解码并回填
func (s *ExamService) GetResult(ctx context.Context, userID uint, attemptID string) (*model.ExamResult, error) {
	if entry, err := s.Cache.Get(ctx, attemptID); err != nil {
		logger.Log.Warn("read cached exam result failed", zap.String("attemptID", attemptID), zap.Error(err))
	} else if entry != nil && entry.Result != nil {
		if entry.UserID != userID {
			return nil, util.ErrPermissionDenied
		}
		return entry.Result, nil
	}

	a, err := s.loadOwned(ctx, userID, attemptID, false)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptCompleted {
		return nil, &util.StateError{Current: string(a.Status), Action: "read result of"}
	}
	result, err := a.DecodeResult()
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &util.StateError{Current: string(a.Status), Action: "read result of"}
	}

	if err := s.Cache.Set(ctx, a.ID, &CachedResult{UserID: a.UserID, Result: result}, s.settings.Get().ResultCacheTTL()); err != nil {
		logger.Log.Warn("cache exam result failed", zap.String("attemptID", a.ID), zap.Error(err))
	}
	return result, nil
}

// AttemptQuestions 按考试中的出题顺序返回题目
func (s *ExamService) AttemptQuestions(ctx context.Context, a *model.ExamAttempt) ([]model.Question, error) {
	qs, err := s.Questions.Repo.FindByIDs(ctx, a.QuestionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

func (s *ExamService) ListMyAttempts(ctx context.Context, userID uint, status model.AttemptStatus, page, limit int) ([]model.ExamAttempt, int64, error) {
	return s.Attempts.ListByUser(ctx, userID, status, page, limit)
}

// ExpireStale 由定时任务调用，批量关闭超时未完成的考试
func (s *ExamService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.Attempts.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.AttemptTransitions.WithLabelValues(string(model.AttemptExpired)).Add(float64(n))
		logger.Log.Info("expired stale exam attempts", zap.Int64("count", n))
	}
	return n, nil
}

func (s *ExamService) loadOwned(ctx context.Context, userID uint, attemptID string, withAnswers bool) (*model.ExamAttempt, error) {
	var (
		a   *model.ExamAttempt
		err error
	)
	if withAnswers {
		a, err = s.Attempts.FindByIDWithAnswers(ctx, attemptID)
	} else {
		a, err = s.Attempts.FindByID(ctx, attemptID)
	}
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return a, nil
}

// expireIfDue 考试已过期时返回 true，必要时把状态写成 expired
func (s *ExamService) expireIfDue(ctx context.Context, a *model.ExamAttempt) bool {
	if !a.IsExpired(s.now()) {
		return false
	}
	if a.Status == model.AttemptExpired {
		return true
	}

	from := a.Status
	err := s.Attempts.UpdateState(ctx, a, from, map[string]interface{}{"status": model.AttemptExpired})
	switch {
	case err == nil:
		monitoring.AttemptTransitions.WithLabelValues(string(model.AttemptExpired)).Inc()
		logger.Log.Info("exam attempt expired", zap.String("attemptID", a.ID), zap.String("from", string(from)))
	case errors.Is(err, util.ErrVersionConflict):
		// 已被定时任务或并发请求处理
	default:
		logger.Log.Warn("mark attempt expired failed", zap.String("attemptID", a.ID), zap.Error(err))
	}
	a.Status = model.AttemptExpired
	return true
}

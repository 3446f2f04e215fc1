package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
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

const maxSimilarLimit = 50

type QuestionService struct {
	Repo     *repository.QuestionRepository
	Storage  *StorageService
	settings *ExamSettings
}

func NewQuestionService(repo *repository.QuestionRepository, storage *StorageService, settings *ExamSettings) *QuestionService {
	return &QuestionService{
		Repo:     repo,
		Storage:  storage,
		settings: settings,
	}
}

type QuestionRequest struct {
	Section         model.Section `json:"section" binding:"required,teps_section"`
	QuestionType    string        `json:"questionType" binding:"required,max=50"`
	Content         string        `json:"content" binding:"required"`
	Options         []string      `json:"options" binding:"omitempty,min=2,max=10"`
	CorrectAnswer   string        `json:"correctAnswer" binding:"required,max=255"`
	Explanation     string        `json:"explanation"`
	DifficultyLevel int           `json:"difficultyLevel" binding:"required,min=1,max=5"`
}

type ReviewRequest struct {
	Status model.ReviewStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

// validate 导入等非 HTTP 入口同样需要校验
func (r *QuestionRequest) validate() error {
	if !r.Section.Valid() {
		return util.NewValidationError("section", "unknown section %q", r.Section)
	}
	if strings.TrimSpace(r.QuestionType) == "" {
		return util.NewValidationError("questionType", "is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return util.NewValidationError("content", "is required")
	}
	if strings.TrimSpace(r.CorrectAnswer) == "" {
		return util.NewValidationError("correctAnswer", "is required")
	}
	if r.DifficultyLevel < model.MinDifficultyLevel || r.DifficultyLevel > model.MaxDifficultyLevel {
		return util.NewValidationError("difficultyLevel", "must be between %d and %d", model.MinDifficultyLevel, model.MaxDifficultyLevel)
	}
	return nil
}

func encodeOptions(options []string) (datatypes.JSON, error) {
	if len(options) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func (s *QuestionService) newQuestion(creatorID uint, req QuestionRequest) (*model.Question, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	q := model.NewQuestion(req.Section, strings.TrimSpace(req.QuestionType), req.Content, strings.TrimSpace(req.CorrectAnswer), req.DifficultyLevel)
	opts, err := encodeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	q.Options = opts
	q.Explanation = req.Explanation
	q.CreatorID = creatorID
	q.Statistics.Guessing = s.settings.Get().DefaultGuessing
	return q, nil
}

// CreateQuestion 新题目进入待审核状态
func (s *QuestionService) CreateQuestion(ctx context.Context, creatorID uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.newQuestion(creatorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, q); err != nil {
		return nil, err
	}
	logger.Log.Info("question created",
		zap.Uint("questionID", q.ID),
		zap.String("section", string(q.Section)),
		zap.Uint("creatorID", creatorID))
	return q, nil
}

// UpdateQuestion 只修改题目内容，已累计的统计数据保留
func (s *QuestionService) UpdateQuestion(ctx context.Context, editor *util.Claims, id uint, req QuestionRequest) (*model.Question, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	q, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if editor.Role != model.Admin && q.CreatorID != editor.UserID {
		return nil, util.ErrPermissionDenied
	}

	opts, err := encodeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	q.Section = req.Section
	q.QuestionType = strings.TrimSpace(req.QuestionType)
	q.Content = req.Content
	q.Options = opts
	q.CorrectAnswer = strings.TrimSpace(req.CorrectAnswer)
	q.Explanation = req.Explanation
	q.DifficultyLevel = req.DifficultyLevel

	if err := s.Repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) GetQuestion(ctx context.Context, id uint) (*model.Question, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *QuestionService) ListQuestions(ctx context.Context, filter repository.QuestionFilter, page, limit int) ([]model.Question, int64, error) {
	return s.Repo.List(ctx, filter, page, limit)
}

// ReviewQuestion 题目不删除，只通过审核状态上下架
func (s *QuestionService) ReviewQuestion(ctx context.Context, id uint, req ReviewRequest) error {
	if !req.Status.Valid() {
		return util.NewValidationError("status", "must be one of pending, approved, rejected")
	}
	if err := s.Repo.UpdateReview(ctx, id, req.Status, req.Note); err != nil {
		return err
	}
	logger.Log.Info("question reviewed",
		zap.Uint("questionID", id),
		zap.String("status", string(req.Status)))
	return nil
}

// GetSimilarQuestions limit 不大于 0 时使用配置的默认值
func (s *QuestionService) GetSimilarQuestions(ctx context.Context, id uint, limit int) ([]model.Question, error) {
	if limit <= 0 {
		limit = s.settings.Get().SimilarDefaultLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}
	q, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Repo.FindSimilar(ctx, q, limit)
}

// RecordAnswer 将一次作答计入题目统计。版本冲突时重新读取并重试，
// 超过配置的次数后返回 ErrVersionConflict。
func (s *QuestionService) RecordAnswer(ctx context.Context, questionID uint, isCorrect bool, timeSpent int, userLevel string) error {
	ctx, span := tracing.StartSpan(ctx, "QuestionService.RecordAnswer",
		attribute.Int64("question.id", int64(questionID)),
		attribute.Bool("answer.correct", isCorrect))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	cfg := s.settings.Get()
	retries := cfg.StatsUpdateRetries
	if retries < 1 {
		retries = 1
	}

	for i := 0; i < retries; i++ {
		var q *model.Question
		q, err = s.Repo.FindByID(ctx, questionID)
		if err != nil {
			return err
		}
		q.UpdateStatistics(isCorrect, float64(timeSpent), userLevel, cfg.StatsMinSamples)

		err = s.Repo.UpdateStatistics(ctx, q)
		if err == nil {
			return nil
		}
		if !errors.Is(err, util.ErrVersionConflict) {
			return err
		}
		monitoring.StatisticsConflicts.Inc()
		logger.Log.Debug("question statistics conflict, retrying",
			zap.Uint("questionID", questionID),
			zap.Int("attempt", i+1))
	}
	return err
}

// UploadAudio 上传听力音频并用 ffmpeg 读取时长，读取失败时时长记为 0
func (s *QuestionService) UploadAudio(ctx context.Context, id uint, file *multipart.FileHeader) (*model.Question, error) {
	q, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Section != model.SectionListening {
		return nil, util.NewValidationError("file", "audio can only be attached to listening questions")
	}
	if !util.HasAllowedExtension(file.Filename, util.AllowedAudioExtensions) {
		return nil, util.NewValidationError("file", "unsupported audio format %q", filepath.Ext(file.Filename))
	}
	if file.Size > util.MaxAudioSize {
		return nil, util.NewValidationError("file", "audio exceeds %d bytes", util.MaxAudioSize)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	contentType, err := util.ValidateMimeType(src, []string{util.MimeAudio, util.MimeOctetStream})
	if err != nil {
		return nil, util.NewValidationError("file", "%s", err.Error())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	tmp, err := os.CreateTemp("", "teps-audio-*"+ext)
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	duration := 0.0
	if info, err := util.GetAudioInfo(tmpPath); err != nil {
		logger.Log.Warn("read audio duration failed", zap.Uint("questionID", id), zap.Error(err))
	} else {
		duration = info.Duration
	}

	objectName := fmt.Sprintf("audio/%d-%s%s", id, time.Now().Format("20060102150405"), ext)
	url, err := s.Storage.UploadFile(ctx, objectName, tmpPath, contentType)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.UpdateAudio(ctx, id, url, duration); err != nil {
		if delErr := s.Storage.Delete(ctx, objectName); delErr != nil {
			logger.Log.Warn("remove orphan audio failed", zap.String("object", objectName), zap.Error(delErr))
		}
		return nil, err
	}
	q.AudioURL = url
	q.AudioDuration = duration
	return q, nil
}

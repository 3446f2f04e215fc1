package service

import (
	"context"

	"teps_backend/internal/model"
	"teps_backend/internal/repository"
	"teps_backend/internal/util"
	"teps_backend/pkg/logger"

	"go.uber.org/zap"
)

type ExamConfigService struct {
	Repo *repository.ExamConfigRepository
}

func NewExamConfigService(repo *repository.ExamConfigRepository) *ExamConfigService {
	return &ExamConfigService{Repo: repo}
}

type ExamConfigRequest struct {
	Title              string                `json:"title" binding:"required,max=255"`
	Description        string                `json:"description"`
	Sections           []model.SectionConfig `json:"sections" binding:"required,min=1,dive"`
	TotalTimeLimit     int                   `json:"totalTimeLimit" binding:"min=0"`
	ShuffleQuestions   *bool                 `json:"shuffleQuestions"`
	AllowReview        *bool                 `json:"allowReview"`
	AdaptiveDifficulty bool                  `json:"adaptiveDifficulty"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// CreateExamConfig 每个部分只能出现一次，新试卷默认未发布
func (s *ExamConfigService) CreateExamConfig(ctx context.Context, creatorID uint, req ExamConfigRequest) (*model.ExamConfig, error) {
	if len(req.Sections) == 0 {
		return nil, util.NewValidationError("sections", "at least one section is required")
	}
	seen := make(map[model.Section]bool, len(req.Sections))
	for _, sc := range req.Sections {
		if !sc.Section.Valid() {
			return nil, util.NewValidationError("sections", "unknown section %q", sc.Section)
		}
		if seen[sc.Section] {
			return nil, util.NewValidationError("sections", "section %q listed more than once", sc.Section)
		}
		if sc.QuestionCount <= 0 {
			return nil, util.NewValidationError("sections", "section %q needs a positive question count", sc.Section)
		}
		seen[sc.Section] = true
	}

	c := &model.ExamConfig{
		Title:              req.Title,
		Description:        req.Description,
		Sections:           req.Sections,
		TotalTimeLimit:     req.TotalTimeLimit,
		ShuffleQuestions:   boolOr(req.ShuffleQuestions, true),
		AllowReview:        boolOr(req.AllowReview, true),
		AdaptiveDifficulty: req.AdaptiveDifficulty,
		CreatorID:          creatorID,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.Log.Info("exam config created", zap.Uint("examConfigID", c.ID), zap.Uint("creatorID", creatorID))
	return c, nil
}

// GetExamConfig 学生只能看到已发布的试卷
func (s *ExamConfigService) GetExamConfig(ctx context.Context, id uint, includeUnpublished bool) (*model.ExamConfig, error) {
	c, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished && !includeUnpublished {
		return nil, util.ErrExamConfigNotFound
	}
	return c, nil
}

func (s *ExamConfigService) ListExamConfigs(ctx context.Context, publishedOnly bool, page, limit int) ([]model.ExamConfig, int64, error) {
	return s.Repo.List(ctx, publishedOnly, page, limit)
}

func (s *ExamConfigService) PublishExamConfig(ctx context.Context, id uint, publish bool) error {
	if err := s.Repo.SetPublished(ctx, id, publish); err != nil {
		return err
	}
	logger.Log.Info("exam config publish state changed", zap.Uint("examConfigID", id), zap.Bool("published", publish))
	return nil
}

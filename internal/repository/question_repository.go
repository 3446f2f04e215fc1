package repository

import (
	"context"
	"errors"

	"teps_backend/internal/model"
	"teps_backend/internal/util"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// QuestionFilter 题库查询条件，零值字段不参与过滤
type QuestionFilter struct {
	Section         model.Section
	QuestionType    string
	ReviewStatus    model.ReviewStatus
	DifficultyLevel int
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) CreateBatch(ctx context.Context, qs []*model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(qs, 100).Error
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	var qs []model.Question
	if len(ids) == 0 {
		return qs, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) List(ctx context.Context, f QuestionFilter, page, limit int) ([]model.Question, int64, error) {
	var qs []model.Question
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Question{})
	if f.Section != "" {
		query = query.Where("section = ?", f.Section)
	}
	if f.QuestionType != "" {
		query = query.Where("question_type = ?", f.QuestionType)
	}
	if f.ReviewStatus != "" {
		query = query.Where("review_status = ?", f.ReviewStatus)
	}
	if f.DifficultyLevel > 0 {
		query = query.Where("difficulty_level = ?", f.DifficultyLevel)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("id desc").Offset(offset).Limit(limit).Find(&qs).Error
	return qs, total, err
}

func (r *QuestionRepository) CountApprovedBySection(ctx context.Context, section model.Section) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("review_status = ? AND section = ?", model.ReviewApproved, section).
		Count(&count).Error
	return count, err
}

// FindApprovedBySection 按 id 顺序取出从 offset 开始的 limit 道已审核题目
func (r *QuestionRepository) FindApprovedBySection(ctx context.Context, section model.Section, offset, limit int) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).
		Where("review_status = ? AND section = ?", model.ReviewApproved, section).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&qs).Error
	return qs, err
}

// FindSimilar 同部分、同题型、难度等级相差不超过 1 的其他已审核题目
func (r *QuestionRepository) FindSimilar(ctx context.Context, q *model.Question, limit int) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).
		Where("review_status = ?", model.ReviewApproved).
		Where("section = ? AND question_type = ?", q.Section, q.QuestionType).
		Where("difficulty_level BETWEEN ? AND ?", q.DifficultyLevel-1, q.DifficultyLevel+1).
		Where("id <> ?", q.ID).
		Order("id asc").
		Limit(limit).
		Find(&qs).Error
	return qs, err
}

// Update 更新题目内容字段，统计字段由 UpdateStatistics 单独维护
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	res := r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("id = ? AND version = ?", q.ID, q.Version).
		Updates(map[string]interface{}{
			"section":          q.Section,
			"question_type":    q.QuestionType,
			"content":          q.Content,
			"options":          q.Options,
			"correct_answer":   q.CorrectAnswer,
			"explanation":      q.Explanation,
			"difficulty_level": q.DifficultyLevel,
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrVersionConflict
	}
	q.Version++
	return nil
}

// UpdateStatistics 以 version 做乐观锁写回统计字段，版本不符时返回 ErrVersionConflict
func (r *QuestionRepository) UpdateStatistics(ctx context.Context, q *model.Question) error {
	s := q.Statistics
	res := r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("id = ? AND version = ?", q.ID, q.Version).
		Updates(map[string]interface{}{
			"stats_times_used":           s.TimesUsed,
			"stats_times_correct":        s.TimesCorrect,
			"stats_times_incorrect":      s.TimesIncorrect,
			"stats_average_time_spent":   s.AverageTimeSpent,
			"stats_difficulty":           s.Difficulty,
			"stats_discrimination":       s.Discrimination,
			"stats_guessing":             s.Guessing,
			"stats_performance_by_level": s.PerformanceByLevel,
			"version":                    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrVersionConflict
	}
	q.Version++
	return nil
}

func (r *QuestionRepository) UpdateReview(ctx context.Context, id uint, status model.ReviewStatus, note string) error {
	res := r.DB.WithContext(ctx).Model(&model.Question{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"review_status": status,
			"review_note":   note,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) UpdateAudio(ctx context.Context, id uint, url string, duration float64) error {
	res := r.DB.WithContext(ctx).Model(&model.Question{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"audio_url":      url,
			"audio_duration": duration,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuestionNotFound
	}
	return nil
}

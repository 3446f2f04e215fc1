package repository

import (
	"context"
	"errors"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/util"

	"gorm.io/gorm"
)

type ExamAttemptRepository struct {
	DB *gorm.DB
}

func NewExamAttemptRepository(db *gorm.DB) *ExamAttemptRepository {
	return &ExamAttemptRepository{DB: db}
}

func (r *ExamAttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *ExamAttemptRepository) FindByID(ctx context.Context, id string) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByIDWithAnswers 连同作答记录一起加载，作答按提交顺序排列
func (r *ExamAttemptRepository) FindByIDWithAnswers(ctx context.Context, id string) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence asc")
		}).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *ExamAttemptRepository) ListByUser(ctx context.Context, userID uint, status model.AttemptStatus, page, limit int) ([]model.ExamAttempt, int64, error) {
	var as []model.ExamAttempt
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

// LatestCompletedLevel 用户最近一次已完成考试的评估等级，没有时返回空串
func (r *ExamAttemptRepository) LatestCompletedLevel(ctx context.Context, userID uint) (string, error) {
	var a model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Select("estimated_level").
		Where("user_id = ? AND status = ? AND estimated_level <> ''", userID, model.AttemptCompleted).
		Order("completed_at desc").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return a.EstimatedLevel, nil
}

// UpdateState 在 version 与 status 均匹配时写入 fields，并递增 version
func (r *ExamAttemptRepository) UpdateState(ctx context.Context, a *model.ExamAttempt, from model.AttemptStatus, fields map[string]interface{}) error {
	return updateAttempt(r.DB.WithContext(ctx), a, from, fields)
}

func updateAttempt(tx *gorm.DB, a *model.ExamAttempt, from model.AttemptStatus, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	res := tx.Model(&model.ExamAttempt{}).
		Where("id = ? AND version = ? AND status = ?", a.ID, a.Version, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrVersionConflict
	}
	a.Version++
	return nil
}

// SaveAnswer 在同一事务中写入作答并推进答题进度。
// 同一题重复提交返回 ErrAnswerAlreadySubmitted，考试已被并发修改返回 ErrVersionConflict。
func (r *ExamAttemptRepository) SaveAnswer(ctx context.Context, a *model.ExamAttempt, ans *model.ExamAttemptAnswer) error {
	nextIndex := a.CurrentQuestionIndex + 1
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ExamAttemptAnswer{}).
			Where("attempt_id = ? AND question_id = ?", ans.AttemptID, ans.QuestionID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return util.ErrAnswerAlreadySubmitted
		}

		if err := tx.Create(ans).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return util.ErrAnswerAlreadySubmitted
			}
			return err
		}

		return updateAttempt(tx, a, model.AttemptInProgress, map[string]interface{}{
			"current_question_index": nextIndex,
		})
	})
	if err != nil {
		return err
	}
	a.CurrentQuestionIndex = nextIndex
	return nil
}

func (r *ExamAttemptRepository) ListAnswers(ctx context.Context, attemptID string) ([]model.ExamAttemptAnswer, error) {
	var answers []model.ExamAttemptAnswer
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("sequence asc").
		Find(&answers).Error
	return answers, err
}

// ExpireStale 将已过期但仍未完成的考试批量标记为 expired
func (r *ExamAttemptRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).
		Where("status IN ? AND expires_at < ?",
			[]model.AttemptStatus{model.AttemptNotStarted, model.AttemptInProgress}, now).
		Updates(map[string]interface{}{
			"status":  model.AttemptExpired,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

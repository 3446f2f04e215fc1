package repository

import (
	"context"
	"errors"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/util"

	"gorm.io/gorm"
)

type ExamConfigRepository struct {
	DB *gorm.DB
}

func NewExamConfigRepository(db *gorm.DB) *ExamConfigRepository {
	return &ExamConfigRepository{DB: db}
}

func (r *ExamConfigRepository) Create(ctx context.Context, c *model.ExamConfig) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *ExamConfigRepository) FindByID(ctx context.Context, id uint) (*model.ExamConfig, error) {
	var c model.ExamConfig
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamConfigNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ExamConfigRepository) List(ctx context.Context, publishedOnly bool, page, limit int) ([]model.ExamConfig, int64, error) {
	var cs []model.ExamConfig
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.ExamConfig{})
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&cs).Error
	return cs, total, err
}

func (r *ExamConfigRepository) SetPublished(ctx context.Context, id uint, publish bool) error {
	updates := map[string]interface{}{"is_published": publish}
	if publish {
		updates["published_at"] = time.Now()
	} else {
		updates["published_at"] = nil
	}
	res := r.DB.WithContext(ctx).Model(&model.ExamConfig{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrExamConfigNotFound
	}
	return nil
}

// Package testutil 测试用的内存数据库与数据构造函数
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"teps_backend/internal/model"
	"teps_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PrepareDB 每个测试独立的 sqlite 内存库，已完成迁移
func PrepareDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库在最后一个连接关闭时销毁
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateQuestions 为某个部分创建 n 道已审核的单选题，正确答案均为 "A"
func CreateQuestions(t *testing.T, db *gorm.DB, section model.Section, n int) []*model.Question {
	t.Helper()

	opts, _ := json.Marshal([]string{"A", "B", "C", "D"})
	qs := make([]*model.Question, 0, n)
	for i := 0; i < n; i++ {
		q := model.NewQuestion(section, "multiple_choice", fmt.Sprintf("%s question %d", section, i+1), "A", 3)
		q.Options = datatypes.JSON(opts)
		q.ReviewStatus = model.ReviewApproved
		qs = append(qs, q)
	}
	require.NoError(t, db.Create(&qs).Error)
	return qs
}

// FullExamConfig 四个部分、每部分 perSection 道题的已发布试卷
func FullExamConfig(t *testing.T, db *gorm.DB, perSection int) *model.ExamConfig {
	t.Helper()

	sections := make(datatypes.JSONSlice[model.SectionConfig], 0, len(model.Sections))
	for _, s := range model.Sections {
		sections = append(sections, model.SectionConfig{Section: s, QuestionCount: perSection, TimeLimit: 10})
	}
	cfg := &model.ExamConfig{
		Title:            "TEPS Practice",
		Sections:         sections,
		TotalTimeLimit:   40,
		ShuffleQuestions: true,
		AllowReview:      true,
		IsPublished:      true,
	}
	require.NoError(t, db.Create(cfg).Error)
	return cfg
}

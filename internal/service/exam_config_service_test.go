package service

import (
	"context"
	"testing"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamConfigService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noShuffle := false
	c, err := env.configs.CreateExamConfig(ctx, 3, ExamConfigRequest{
		Title: "Mock TEPS",
		Sections: []model.SectionConfig{
			{Section: model.SectionListening, QuestionCount: 40},
			{Section: model.SectionReading, QuestionCount: 35},
		},
		ShuffleQuestions: &noShuffle,
	})
	require.NoError(t, err)
	assert.False(t, c.IsPublished)
	assert.False(t, c.ShuffleQuestions)
	assert.True(t, c.AllowReview)

	stored, err := env.configs.GetExamConfig(ctx, c.ID, true)
	require.NoError(t, err)
	assert.False(t, stored.ShuffleQuestions)
	assert.Equal(t, 75, stored.TotalQuestions())

	// 未发布的试卷对学生不可见
	_, err = env.configs.GetExamConfig(ctx, c.ID, false)
	assert.ErrorIs(t, err, util.ErrExamConfigNotFound)

	require.NoError(t, env.configs.PublishExamConfig(ctx, c.ID, true))
	_, err = env.configs.GetExamConfig(ctx, c.ID, false)
	assert.NoError(t, err)

	list, total, err := env.configs.ListExamConfigs(ctx, true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestExamConfigService_Create_Invalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		sections []model.SectionConfig
	}{
		{"no sections", nil},
		{"unknown section", []model.SectionConfig{{Section: "writing", QuestionCount: 5}}},
		{"duplicate section", []model.SectionConfig{
			{Section: model.SectionGrammar, QuestionCount: 5},
			{Section: model.SectionGrammar, QuestionCount: 5},
		}},
		{"zero questions", []model.SectionConfig{{Section: model.SectionGrammar}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.configs.CreateExamConfig(ctx, 3, ExamConfigRequest{Title: "x", Sections: tt.sections})
			var verr *util.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestExpiryScheduler_Sweep(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env, 1)
	ctx := context.Background()

	a, err := env.exams.CreateAttempt(ctx, studentID, exam.ID)
	require.NoError(t, err)
	env.exams.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	s := NewExpiryScheduler(env.exams, time.Hour)
	require.NoError(t, s.Start())
	defer s.Stop()
	s.sweep()

	stored, err := env.exams.Attempts.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptExpired, stored.Status)
}

func TestExpiryScheduler_SetInterval(t *testing.T) {
	env := newTestEnv(t)

	s := NewExpiryScheduler(env.exams, time.Hour)
	require.NoError(t, s.SetInterval(30*time.Minute))
	assert.Equal(t, 30*time.Minute, s.Interval())
	assert.Empty(t, s.scheduler.Jobs())

	require.NoError(t, s.Start())
	defer s.Stop()
	require.Len(t, s.scheduler.Jobs(), 1)

	require.NoError(t, s.SetInterval(10*time.Minute))
	assert.Equal(t, 10*time.Minute, s.Interval())
	assert.Len(t, s.scheduler.Jobs(), 1)

	// 非法周期被忽略
	require.NoError(t, s.SetInterval(0))
	assert.Equal(t, 10*time.Minute, s.Interval())
}

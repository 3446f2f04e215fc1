package repository

import (
	"context"
	"testing"
	"time"

	"teps_backend/internal/model"
	"teps_backend/internal/testutil"
	"teps_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttempt(userID uint, status model.AttemptStatus, expiresAt time.Time) *model.ExamAttempt {
	return &model.ExamAttempt{
		UserID:       userID,
		ExamConfigID: 1,
		Status:       status,
		QuestionIDs:  []uint{1, 2, 3},
		UserLevel:    model.UnratedLevel,
		ExpiresAt:    expiresAt,
	}
}

func TestExamAttemptRepository_CreateAndFind(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	a := newAttempt(7, model.AttemptNotStarted, time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, a))
	require.NotEmpty(t, a.ID)

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, []uint(got.QuestionIDs))
	assert.Equal(t, model.AttemptNotStarted, got.Status)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestExamAttemptRepository_UpdateState(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	a := newAttempt(7, model.AttemptNotStarted, time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, a))

	stale := *a
	now := time.Now()
	require.NoError(t, repo.UpdateState(ctx, a, model.AttemptNotStarted, map[string]interface{}{
		"status":     model.AttemptInProgress,
		"started_at": now,
	}))
	assert.Equal(t, 1, a.Version)

	err := repo.UpdateState(ctx, &stale, model.AttemptNotStarted, map[string]interface{}{
		"status": model.AttemptInProgress,
	})
	assert.ErrorIs(t, err, util.ErrVersionConflict)
}

func TestExamAttemptRepository_SaveAnswer(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	a := newAttempt(7, model.AttemptInProgress, time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, a))

	ans := &model.ExamAttemptAnswer{AttemptID: a.ID, QuestionID: 2, Section: model.SectionGrammar, SelectedAnswer: "A", IsCorrect: true, TimeSpent: 12, Sequence: 1}
	require.NoError(t, repo.SaveAnswer(ctx, a, ans))
	assert.Equal(t, 1, a.CurrentQuestionIndex)

	dup := &model.ExamAttemptAnswer{AttemptID: a.ID, QuestionID: 2, Section: model.SectionGrammar, SelectedAnswer: "B", Sequence: 2}
	assert.ErrorIs(t, repo.SaveAnswer(ctx, a, dup), util.ErrAnswerAlreadySubmitted)

	got, err := repo.FindByIDWithAnswers(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentQuestionIndex)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, "A", got.Answers[0].SelectedAnswer)
}

func TestExamAttemptRepository_SaveAnswer_RollsBackOnConflict(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	a := newAttempt(7, model.AttemptInProgress, time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, a))

	stale := *a
	stale.Version = 5
	ans := &model.ExamAttemptAnswer{AttemptID: a.ID, QuestionID: 1, Section: model.SectionListening, SelectedAnswer: "A", Sequence: 1}
	assert.ErrorIs(t, repo.SaveAnswer(ctx, &stale, ans), util.ErrVersionConflict)

	answers, err := repo.ListAnswers(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestExamAttemptRepository_LatestCompletedLevel(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	level, err := repo.LatestCompletedLevel(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, level)

	older := time.Now().Add(-48 * time.Hour)
	newer := time.Now().Add(-time.Hour)

	a1 := newAttempt(7, model.AttemptCompleted, older)
	a1.CompletedAt = &older
	a1.EstimatedLevel = "A2-B1 (Elementary)"
	a2 := newAttempt(7, model.AttemptCompleted, newer)
	a2.CompletedAt = &newer
	a2.EstimatedLevel = "B1-B2 (Intermediate)"
	other := newAttempt(8, model.AttemptCompleted, newer)
	other.CompletedAt = &newer
	other.EstimatedLevel = "C1-C2 (Advanced)"
	for _, a := range []*model.ExamAttempt{a1, a2, other} {
		require.NoError(t, repo.Create(ctx, a))
	}

	level, err = repo.LatestCompletedLevel(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "B1-B2 (Intermediate)", level)
}

func TestExamAttemptRepository_ExpireStale(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamAttemptRepository(db)
	ctx := context.Background()

	now := time.Now()
	stale1 := newAttempt(1, model.AttemptNotStarted, now.Add(-time.Minute))
	stale2 := newAttempt(1, model.AttemptInProgress, now.Add(-time.Hour))
	fresh := newAttempt(1, model.AttemptInProgress, now.Add(time.Hour))
	done := newAttempt(1, model.AttemptCompleted, now.Add(-time.Hour))
	for _, a := range []*model.ExamAttempt{stale1, stale2, fresh, done} {
		require.NoError(t, repo.Create(ctx, a))
	}

	n, err := repo.ExpireStale(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := repo.FindByID(ctx, stale2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptExpired, got.Status)

	got, err = repo.FindByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, got.Status)

	as, total, err := repo.ListByUser(ctx, 1, model.AttemptExpired, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, as, 2)
}

package repository

import (
	"context"
	"testing"

	"teps_backend/internal/model"
	"teps_backend/internal/testutil"
	"teps_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionRepository_FindByID(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	qs := testutil.CreateQuestions(t, db, model.SectionGrammar, 1)

	got, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.SectionGrammar, got.Section)
	assert.Equal(t, "A", got.CorrectAnswer)
	assert.Equal(t, []string{"A", "B", "C", "D"}, got.OptionList())

	_, err = repo.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestQuestionRepository_ApprovedPool(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	testutil.CreateQuestions(t, db, model.SectionReading, 5)
	testutil.CreateQuestions(t, db, model.SectionGrammar, 2)
	pending := model.NewQuestion(model.SectionReading, "multiple_choice", "pending", "B", 2)
	require.NoError(t, repo.Create(ctx, pending))

	count, err := repo.CountApprovedBySection(ctx, model.SectionReading)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	pool, err := repo.FindApprovedBySection(ctx, model.SectionReading, 1, 3)
	require.NoError(t, err)
	require.Len(t, pool, 3)
	for i, q := range pool {
		assert.Equal(t, model.SectionReading, q.Section)
		assert.Equal(t, model.ReviewApproved, q.ReviewStatus)
		if i > 0 {
			assert.Greater(t, q.ID, pool[i-1].ID)
		}
	}
}

func TestQuestionRepository_List(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	testutil.CreateQuestions(t, db, model.SectionListening, 3)
	testutil.CreateQuestions(t, db, model.SectionVocabulary, 4)

	qs, total, err := repo.List(ctx, QuestionFilter{Section: model.SectionVocabulary}, 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, qs, 3)

	qs, total, err = repo.List(ctx, QuestionFilter{ReviewStatus: model.ReviewPending}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, qs)
}

func TestQuestionRepository_FindSimilar(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	qs := testutil.CreateQuestions(t, db, model.SectionGrammar, 3)
	far := model.NewQuestion(model.SectionGrammar, "multiple_choice", "too hard", "A", 5)
	far.ReviewStatus = model.ReviewApproved
	require.NoError(t, repo.Create(ctx, far))
	other := model.NewQuestion(model.SectionGrammar, "error_detection", "other type", "A", 3)
	other.ReviewStatus = model.ReviewApproved
	require.NoError(t, repo.Create(ctx, other))

	similar, err := repo.FindSimilar(ctx, qs[0], 10)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	for _, q := range similar {
		assert.NotEqual(t, qs[0].ID, q.ID)
		assert.Equal(t, "multiple_choice", q.QuestionType)
		assert.Equal(t, 3, q.DifficultyLevel)
	}
}

func TestQuestionRepository_UpdateStatistics_VersionConflict(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	qs := testutil.CreateQuestions(t, db, model.SectionListening, 1)

	first, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)

	first.UpdateStatistics(true, 10, "unrated", 10)
	require.NoError(t, repo.UpdateStatistics(ctx, first))
	assert.Equal(t, 1, first.Version)

	// 基于旧版本的写入被拒绝
	second.UpdateStatistics(false, 20, "unrated", 10)
	assert.ErrorIs(t, repo.UpdateStatistics(ctx, second), util.ErrVersionConflict)

	stored, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Statistics.TimesUsed)
	assert.Equal(t, 1, stored.Statistics.TimesCorrect)
	require.Len(t, stored.Statistics.PerformanceByLevel, 1)
	assert.Equal(t, "unrated", stored.Statistics.PerformanceByLevel[0].Level)
}

func TestQuestionRepository_UpdateReview(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	q := model.NewQuestion(model.SectionReading, "passage", "content", "C", 4)
	require.NoError(t, repo.Create(ctx, q))

	require.NoError(t, repo.UpdateReview(ctx, q.ID, model.ReviewRejected, "ambiguous options"))
	got, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, got.ReviewStatus)
	assert.Equal(t, "ambiguous options", got.ReviewNote)

	assert.ErrorIs(t, repo.UpdateReview(ctx, 4242, model.ReviewApproved, ""), util.ErrQuestionNotFound)
}

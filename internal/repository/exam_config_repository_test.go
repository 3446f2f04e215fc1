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

func TestExamConfigRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewExamConfigRepository(db)
	ctx := context.Background()

	published := testutil.FullExamConfig(t, db, 5)
	draft := &model.ExamConfig{
		Title:    "Draft",
		Sections: []model.SectionConfig{{Section: model.SectionGrammar, QuestionCount: 2}},
	}
	require.NoError(t, repo.Create(ctx, draft))

	got, err := repo.FindByID(ctx, published.ID)
	require.NoError(t, err)
	assert.Len(t, got.Sections, 4)
	assert.Equal(t, 20, got.TotalQuestions())
	assert.True(t, got.ShuffleQuestions)

	got, err = repo.FindByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.False(t, got.ShuffleQuestions)

	list, total, err := repo.List(ctx, true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, published.ID, list[0].ID)

	require.NoError(t, repo.SetPublished(ctx, draft.ID, true))
	got, err = repo.FindByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	assert.NotNil(t, got.PublishedAt)

	_, err = repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, util.ErrExamConfigNotFound)
	assert.ErrorIs(t, repo.SetPublished(ctx, 404, true), util.ErrExamConfigNotFound)
}

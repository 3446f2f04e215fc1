package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"testing"

	"teps_backend/internal/model"
	"teps_backend/internal/repository"
	"teps_backend/internal/testutil"
	"teps_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func validQuestionRequest() QuestionRequest {
	return QuestionRequest{
		Section:         model.SectionGrammar,
		QuestionType:    "multiple_choice",
		Content:         "He ___ finished his homework.",
		Options:         []string{"has", "have", "having", "had been"},
		CorrectAnswer:   "has",
		DifficultyLevel: 2,
	}
}

func TestQuestionService_CreateQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	q, err := env.questions.CreateQuestion(ctx, 3, validQuestionRequest())
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, q.ReviewStatus)
	assert.Equal(t, 2.0, q.Statistics.Difficulty)
	assert.Equal(t, 0.25, q.Statistics.Guessing)
	assert.Equal(t, []string{"has", "have", "having", "had been"}, q.OptionList())

	bad := validQuestionRequest()
	bad.DifficultyLevel = 6
	_, err = env.questions.CreateQuestion(ctx, 3, bad)
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "difficultyLevel", verr.Field)

	bad = validQuestionRequest()
	bad.Section = "speaking"
	_, err = env.questions.CreateQuestion(ctx, 3, bad)
	assert.ErrorAs(t, err, &verr)
}

func TestQuestionService_UpdateQuestion_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	q, err := env.questions.CreateQuestion(ctx, 3, validQuestionRequest())
	require.NoError(t, err)

	req := validQuestionRequest()
	req.Content = "She ___ already left."
	_, err = env.questions.UpdateQuestion(ctx, &util.Claims{UserID: 4, Role: model.Teacher}, q.ID, req)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	updated, err := env.questions.UpdateQuestion(ctx, &util.Claims{UserID: 9, Role: model.Admin}, q.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "She ___ already left.", updated.Content)
}

func TestQuestionService_RecordAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	qs := testutil.CreateQuestions(t, env.db, model.SectionListening, 1)

	for i := 0; i < 12; i++ {
		require.NoError(t, env.questions.RecordAnswer(ctx, qs[0].ID, i%4 != 0, 10+i, "unrated"))
	}

	q, err := env.questions.GetQuestion(ctx, qs[0].ID)
	require.NoError(t, err)
	s := q.Statistics
	assert.Equal(t, 12, s.TimesUsed)
	assert.Equal(t, 9, s.TimesCorrect)
	assert.Equal(t, 3, s.TimesIncorrect)
	assert.InDelta(t, 15.5, s.AverageTimeSpent, 1e-9)
	// p = 0.75, b = -ln(0.5/0.25)
	assert.InDelta(t, -0.6931, s.Difficulty, 1e-3)
	assert.Equal(t, 12, q.Version)
}

func TestQuestionService_RecordAnswer_MissingQuestion(t *testing.T) {
	env := newTestEnv(t)
	err := env.questions.RecordAnswer(context.Background(), 404, true, 5, "unrated")
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestQuestionService_GetSimilarQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	qs := testutil.CreateQuestions(t, env.db, model.SectionReading, 8)

	similar, err := env.questions.GetSimilarQuestions(ctx, qs[0].ID, 0)
	require.NoError(t, err)
	assert.Len(t, similar, 5)
	for _, q := range similar {
		assert.NotEqual(t, qs[0].ID, q.ID)
	}

	similar, err = env.questions.GetSimilarQuestions(ctx, qs[0].ID, 2)
	require.NoError(t, err)
	assert.Len(t, similar, 2)

	_, err = env.questions.GetSimilarQuestions(ctx, 999, 2)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestQuestionService_ReviewQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	q, err := env.questions.CreateQuestion(ctx, 3, validQuestionRequest())
	require.NoError(t, err)

	err = env.questions.ReviewQuestion(ctx, q.ID, ReviewRequest{Status: "deleted"})
	var verr *util.ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, env.questions.ReviewQuestion(ctx, q.ID, ReviewRequest{Status: model.ReviewApproved}))
	got, err := env.questions.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.ReviewStatus)
}

func TestQuestionService_ImportQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"section", "question_type", "content", "options", "correct_answer", "explanation", "difficulty_level"},
		{"Vocabulary", "multiple_choice", "Choose the synonym of 'rapid'.", "fast|slow|late|calm", "fast", "rapid = fast", 2},
		{"listening", "dialogue", "What will the man do next?", "A|B|C|D", "C", "", ""},
		{"speaking", "multiple_choice", "Unknown section", "A|B", "A", "", 3},
		{},
		{"grammar", "multiple_choice", "Bad level", "A|B", "A", "", "hard"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	report, err := env.questions.ImportQuestions(ctx, 5, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 2, report.Imported)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 4, report.Errors[0].Row)
	assert.Equal(t, 6, report.Errors[1].Row)

	qs, total, err := env.questions.ListQuestions(ctx, repository.QuestionFilter{ReviewStatus: model.ReviewPending}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, q := range qs {
		assert.Equal(t, uint(5), q.CreatorID)
		if q.Section == model.SectionListening {
			assert.Equal(t, 3, q.DifficultyLevel)
		}
	}
}

func TestQuestionService_ImportQuestions_NotASpreadsheet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.questions.ImportQuestions(context.Background(), 5, strings.NewReader("not a zip"))
	var verr *util.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestQuestionService_UploadAudio(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listening := testutil.CreateQuestions(t, env.db, model.SectionListening, 1)[0]
	grammar := testutil.CreateQuestions(t, env.db, model.SectionGrammar, 1)[0]

	mp3 := append([]byte("ID3"), make([]byte, 64)...)

	_, err := env.questions.UploadAudio(ctx, grammar.ID, multipartFile(t, "a.mp3", mp3))
	var verr *util.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.questions.UploadAudio(ctx, listening.ID, multipartFile(t, "a.exe", mp3))
	assert.ErrorAs(t, err, &verr)

	q, err := env.questions.UploadAudio(ctx, listening.ID, multipartFile(t, "dialogue.MP3", mp3))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q.AudioURL, "/uploads/audio/"))
	assert.True(t, strings.HasSuffix(q.AudioURL, ".mp3"))

	stored, err := env.questions.GetQuestion(ctx, listening.ID)
	require.NoError(t, err)
	assert.Equal(t, q.AudioURL, stored.AudioURL)
}

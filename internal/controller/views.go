package controller

import (
	"teps_backend/internal/model"

	"gorm.io/datatypes"
)

// questionView 考试中展示给考生的题目，不含答案与解析
type questionView struct {
	ID              uint           `json:"id"`
	Section         model.Section  `json:"section"`
	QuestionType    string         `json:"questionType"`
	Content         string         `json:"content"`
	Options         datatypes.JSON `json:"options,omitempty"`
	AudioURL        string         `json:"audioUrl,omitempty"`
	AudioDuration   float64        `json:"audioDuration,omitempty"`
	DifficultyLevel int            `json:"difficultyLevel"`
}

func toQuestionViews(qs []model.Question) []questionView {
	out := make([]questionView, len(qs))
	for i, q := range qs {
		out[i] = questionView{
			ID:              q.ID,
			Section:         q.Section,
			QuestionType:    q.QuestionType,
			Content:         q.Content,
			Options:         q.Options,
			AudioURL:        q.AudioURL,
			AudioDuration:   q.AudioDuration,
			DifficultyLevel: q.DifficultyLevel,
		}
	}
	return out
}

// authoringQuestion 出题教师看到的完整题目
type authoringQuestion struct {
	*model.Question
	CorrectAnswer string `json:"correctAnswer"`
}

func toAuthoring(q *model.Question) authoringQuestion {
	return authoringQuestion{Question: q, CorrectAnswer: q.CorrectAnswer}
}

// attemptView 考试详情，附带按出题顺序排列的题目
type attemptView struct {
	*model.ExamAttempt
	Questions []questionView    `json:"questions"`
	Result    *model.ExamResult `json:"result,omitempty"`
}

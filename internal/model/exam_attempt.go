package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

// UnratedLevel 没有已完成考试的用户所属的水平分组
const UnratedLevel = "unrated"

// swagger:model ExamAttempt
type ExamAttempt struct {
	UUIDBase
	UserID               uint                      `gorm:"index;type:bigint unsigned" json:"userId"`
	ExamConfigID         uint                      `gorm:"index;type:bigint unsigned" json:"examConfigId"`
	Status               AttemptStatus             `gorm:"size:20;default:'not_started';index" json:"status"`
	QuestionIDs          datatypes.JSONSlice[uint]    `gorm:"type:json" json:"questionIds"`
	QuestionSections     datatypes.JSONSlice[Section] `gorm:"type:json" json:"-"` // 与 QuestionIDs 一一对应，抽题时所属部分
	CurrentQuestionIndex int                          `gorm:"default:0" json:"currentQuestionIndex"`
	UserLevel            string                       `gorm:"size:50" json:"userLevel"`
	StartedAt            *time.Time                   `json:"startedAt,omitempty"`
	CompletedAt          *time.Time                   `json:"completedAt,omitempty"`
	ExpiresAt            time.Time                    `gorm:"index" json:"expiresAt"`
	TotalScore           *int                         `json:"totalScore,omitempty"`
	EstimatedLevel       string                       `gorm:"size:50" json:"estimatedLevel,omitempty"`
	Result               datatypes.JSON               `gorm:"type:json" json:"-"`
	Version              int                          `gorm:"default:0;not null" json:"-"`

	Answers []ExamAttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// IsExpired 未完成且超过过期时间
func (a *ExamAttempt) IsExpired(now time.Time) bool {
	switch a.Status {
	case AttemptExpired:
		return true
	case AttemptCompleted:
		return false
	}
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// ContainsQuestion 题目是否属于本次考试
func (a *ExamAttempt) ContainsQuestion(questionID uint) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// SectionOf 题目被抽中时所属的部分，题目之后被改到其他部分也不影响本次考试的计分
func (a *ExamAttempt) SectionOf(questionID uint) (Section, bool) {
	if len(a.QuestionSections) != len(a.QuestionIDs) {
		return "", false
	}
	for i, id := range a.QuestionIDs {
		if id == questionID {
			return a.QuestionSections[i], true
		}
	}
	return "", false
}

// DecodeResult 未完成的考试返回 nil
func (a *ExamAttempt) DecodeResult() (*ExamResult, error) {
	if len(a.Result) == 0 || string(a.Result) == "null" {
		return nil, nil
	}
	var r ExamResult
	if err := json.Unmarshal(a.Result, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ExamAttemptAnswer 每题作答记录，(attempt_id, question_id) 唯一
type ExamAttemptAnswer struct {
	BaseModel
	AttemptID      string  `gorm:"type:varchar(36);uniqueIndex:idx_attempt_question,priority:1" json:"attemptId"`
	QuestionID     uint    `gorm:"type:bigint unsigned;uniqueIndex:idx_attempt_question,priority:2" json:"questionId"`
	Section        Section `gorm:"size:20" json:"section"`
	SelectedAnswer string  `gorm:"size:255" json:"selectedAnswer"`
	IsCorrect      bool    `gorm:"default:false" json:"isCorrect"`
	TimeSpent      int     `gorm:"default:0" json:"timeSpent"` // 秒
	Sequence       int     `gorm:"default:0" json:"sequence"`
}

func (ExamAttemptAnswer) TableName() string {
	return "exam_attempt_answers"
}
